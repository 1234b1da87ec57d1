// Package logger sets up structured JSON logging with log/slog and carries a
// feed id through context.Context so lifecycle lines from one feed instance
// can be correlated.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const feedIDKey ctxKey = "feed_id"

// Init creates the service logger, writing JSON to stdout, and installs it
// as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(l)
	return l
}

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a level.
// Unknown or empty input yields info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewFeedID builds a feed id of the form "{symbol}-{unixNano}".
func NewFeedID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, ts.UnixNano())
}

// WithFeedID stores a feed id in ctx.
func WithFeedID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, feedIDKey, id)
}

// FeedID returns the feed id from ctx, or "".
func FeedID(ctx context.Context) string {
	if v, ok := ctx.Value(feedIDKey).(string); ok {
		return v
	}
	return ""
}

// Attrs returns the context's log attributes for use as
// slog.Info("msg", logger.Attrs(ctx)...).
func Attrs(ctx context.Context) []any {
	id := FeedID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("feed_id", id)}
}

// FromContext returns base annotated with the context's feed id.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if attrs := Attrs(ctx); attrs != nil {
		return base.With(attrs...)
	}
	return base
}
