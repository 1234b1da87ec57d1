package feedclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"candlefeed/internal/gateway"
	"candlefeed/internal/model"
	"candlefeed/internal/surface"
)

func TestNew_RejectsBadScheme(t *testing.T) {
	if _, err := New(Config{URL: "http://localhost:8080/ws"}, nil); err == nil {
		t.Error("expected error for http scheme")
	}
	if _, err := New(Config{URL: "ws://localhost:8080/ws"}, nil); err != nil {
		t.Errorf("ws scheme: %v", err)
	}
}

func TestClient_TailsHub(t *testing.T) {
	hub := gateway.NewHub(gateway.Config{}, nil)
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer hub.Close()

	hub.Series(gateway.ChannelBars).SetData([]model.Bar{model.Flat(99, 1.2345)})

	c, err := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan gateway.Envelope, 16)
	go c.Start(ctx, out)

	bars := surface.NewStore("bars", 0, nil)
	ghost := surface.NewStore("ghost", 0, nil)
	recv := func() gateway.Envelope {
		t.Helper()
		select {
		case env := <-out:
			if err := Apply(env, bars, ghost); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			return env
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for envelope")
		}
		return gateway.Envelope{}
	}

	recv() // bars snapshot
	recv() // ghost snapshot
	if bars.Len() != 1 {
		t.Fatalf("snapshot not applied: %d bars", bars.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Series(gateway.ChannelBars).Update(model.Bar{Time: 100, Open: 1.2345, High: 1.235, Low: 1.234, Close: 1.2349})
	hub.Series(gateway.ChannelGhost).SetData([]model.Bar{model.Flat(101, 1.2349)})

	recv()
	recv()
	last, _ := bars.Last()
	if last.Time != 100 || last.Close != 1.2349 {
		t.Errorf("live update not applied: %+v", last)
	}
	if ghost.Len() != 1 {
		t.Errorf("ghost setData not applied: %d", ghost.Len())
	}
	if c.LastSeq() != hub.Seq() {
		t.Errorf("LastSeq = %d, hub seq = %d", c.LastSeq(), hub.Seq())
	}
}

func TestClient_GapDetection(t *testing.T) {
	c := &Client{}
	var gaps [][2]int64
	c.OnGap = func(from, to int64) { gaps = append(gaps, [2]int64{from, to}) }

	c.track(gateway.Envelope{Seq: 3, Snapshot: true})
	c.track(gateway.Envelope{Seq: 4})
	c.track(gateway.Envelope{Seq: 7})

	if len(gaps) != 1 || gaps[0] != [2]int64{4, 7} {
		t.Errorf("gaps = %v", gaps)
	}
	if c.LastSeq() != 7 {
		t.Errorf("LastSeq = %d", c.LastSeq())
	}
}

func TestClient_DialURLResumes(t *testing.T) {
	c, _ := New(Config{URL: "ws://host/ws"}, nil)
	if c.dialURL() != "ws://host/ws" {
		t.Errorf("fresh dial url = %s", c.dialURL())
	}
	c.lastSeq = 42
	if c.dialURL() != "ws://host/ws?since=42" {
		t.Errorf("resume dial url = %s", c.dialURL())
	}
}

func TestApply_IgnoresOverlay(t *testing.T) {
	bars := surface.NewStore("bars", 0, nil)
	env := gateway.Envelope{Channel: gateway.ChannelOverlay, Type: "draw", Data: []byte(`{}`)}
	if err := Apply(env, bars, nil); err != nil {
		t.Errorf("overlay Apply: %v", err)
	}
	if err := Apply(gateway.Envelope{Channel: gateway.ChannelBars, Type: "update", Data: []byte(`nope`)}, bars, nil); err == nil {
		t.Error("expected decode error")
	}
}
