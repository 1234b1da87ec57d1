// Package feedclient tails a running candle feed over its WebSocket
// endpoint. Envelopes are decoded and pushed into a channel; on disconnect
// the client reconnects with exponential backoff and resumes from the last
// seq it saw, so the server can backfill instead of re-sending a snapshot.
package feedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"candlefeed/internal/gateway"
	"candlefeed/internal/model"
	"candlefeed/internal/surface"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the tail client.
type Config struct {
	// URL of the feed WebSocket, e.g. "ws://localhost:8080/ws".
	URL string

	// ReconnectDelay is the initial delay before reconnecting (default 2s).
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff (default 30s).
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client streams envelopes from a feed server.
type Client struct {
	cfg     Config
	log     *slog.Logger
	lastSeq int64

	// Optional hooks.
	OnReconnect func()
	OnGap       func(from, to int64) // envelopes (from, to) were never seen
}

// New creates a Client. Returns an error if the URL is unparseable.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url %q: scheme must be ws or wss", cfg.URL)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log.With("component", "feedclient")}, nil
}

// LastSeq returns the seq of the newest envelope received.
func (c *Client) LastSeq() int64 { return c.lastSeq }

// Start connects and pushes envelopes into out until ctx is cancelled.
// Reconnects automatically on disconnect.
func (c *Client) Start(ctx context.Context, out chan<- gateway.Envelope) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		if connected {
			delay = c.cfg.ReconnectDelay
		}

		c.log.Warn("disconnected, reconnecting", "error", err, "delay", delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

func (c *Client) dialURL() string {
	if c.lastSeq == 0 {
		return c.cfg.URL
	}
	u, _ := url.Parse(c.cfg.URL)
	q := u.Query()
	q.Set("since", strconv.FormatInt(c.lastSeq, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// runOnce makes one connection and reads until disconnect or ctx cancel.
// A nil error means ctx was cancelled.
func (c *Client) runOnce(ctx context.Context, out chan<- gateway.Envelope) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.dialURL(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	defer conn.Close()

	c.log.Info("connected", "url", c.cfg.URL, "since", c.lastSeq)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		// The server coalesces queued envelopes, one per line.
		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			var env gateway.Envelope
			if err := json.Unmarshal(line, &env); err != nil {
				c.log.Warn("parse error", "error", err, "raw", string(line))
				continue
			}
			c.track(env)

			select {
			case out <- env:
			case <-ctx.Done():
				return true, nil
			}
		}
	}
}

func (c *Client) track(env gateway.Envelope) {
	if env.Snapshot {
		c.lastSeq = env.Seq
		return
	}
	if c.lastSeq > 0 && env.Seq > c.lastSeq+1 && c.OnGap != nil {
		c.OnGap(c.lastSeq, env.Seq)
	}
	if env.Seq > c.lastSeq {
		c.lastSeq = env.Seq
	}
}

// Apply replays a bar envelope onto the matching local series. Overlay
// envelopes and unknown channels are ignored.
func Apply(env gateway.Envelope, bars, ghost surface.Series) error {
	var target surface.Series
	switch env.Channel {
	case gateway.ChannelBars:
		target = bars
	case gateway.ChannelGhost:
		target = ghost
	default:
		return nil
	}
	if target == nil {
		return nil
	}

	switch env.Type {
	case "setData":
		var list []model.Bar
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return fmt.Errorf("decode %s setData: %w", env.Channel, err)
		}
		target.SetData(list)
	case "update":
		var b model.Bar
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return fmt.Errorf("decode %s update: %w", env.Channel, err)
		}
		target.Update(b)
	}
	return nil
}
