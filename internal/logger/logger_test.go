package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInitWriter_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "candlefeed-test", slog.LevelInfo)
	l.Info("hello", slog.Int("n", 3))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["service"] != "candlefeed-test" || rec["msg"] != "hello" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFeedID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := FeedID(ctx); id != "" {
		t.Errorf("expected empty feed id, got %q", id)
	}
	if Attrs(ctx) != nil {
		t.Error("expected nil attrs without feed id")
	}

	ctx = WithFeedID(ctx, "EURUSD-1")
	if id := FeedID(ctx); id != "EURUSD-1" {
		t.Errorf("expected EURUSD-1, got %q", id)
	}
	if attrs := Attrs(ctx); len(attrs) != 1 {
		t.Errorf("expected one attr, got %v", attrs)
	}
}

func TestNewFeedID(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := NewFeedID("EURUSD", ts)
	if !strings.HasPrefix(id, "EURUSD-") || !strings.Contains(id, "123456789") {
		t.Errorf("unexpected feed id %q", id)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithFeedID(context.Background(), "X-9")

	FromContext(ctx, base).Info("tagged")
	if !strings.Contains(buf.String(), `"feed_id":"X-9"`) {
		t.Errorf("expected feed_id in output, got %s", buf.String())
	}
}
