// Package gateway pushes chart surface events to WebSocket clients.
package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"candlefeed/internal/model"
	"candlefeed/internal/overlay"
	"candlefeed/internal/surface"

	"github.com/gorilla/websocket"
)

// Config configures a Hub.
type Config struct {
	HistoryBars int // live bars kept for the connect snapshot (default 500)
	ReplaySize  int // envelopes kept for reconnect backfill (default 500)
	SendBuffer  int // per-client queued envelopes (default 256)
}

func (c *Config) defaults() {
	if c.HistoryBars <= 0 {
		c.HistoryBars = surface.DefaultHistory
	}
	if c.ReplaySize <= 0 {
		c.ReplaySize = 500
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.SendBuffer < 4 {
		c.SendBuffer = 4 // room for the connect snapshot
	}
}

// Hub manages WebSocket clients. It mirrors the chart surface so a client
// joining mid-stream first receives the live history, the ghost queue and
// the latest overlay, then live events.
type Hub struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer
	bars    *surface.Store
	ghost   []model.Bar
	overlay json.RawMessage

	// Callbacks (optional)
	OnResize  func(width, height, dpr float64) // a client reported a new canvas size
	OnClients func(count int)                  // client connected or left
	OnDrop    func(n int)                      // envelopes dropped for slow clients
}

// NewHub creates a Hub.
func NewHub(cfg Config, log *slog.Logger) *Hub {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "gateway")
	return &Hub{
		cfg:     cfg,
		log:     log,
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(cfg.ReplaySize),
		bars:    surface.NewStore(ChannelBars, cfg.HistoryBars, log),
	}
}

// Series returns a surface.Series broadcasting on channel (ChannelBars or
// ChannelGhost).
func (h *Hub) Series(channel string) surface.Series {
	return &hubSeries{h: h, channel: channel}
}

// PublishOverlay broadcasts a finished overlay frame. Its signature fits an
// overlay.Recorder sink.
func (h *Hub) PublishOverlay(dl overlay.DrawList) {
	data := dl.JSON()
	h.mu.Lock()
	h.overlay = data
	h.mu.Unlock()
	h.broadcast(ChannelOverlay, "draw", data)
}

// Register adds a websocket connection as a client. Unless since names a
// seq still held in the replay buffer, the client first gets a snapshot.
func (h *Hub) Register(conn *websocket.Conn, since int64) *Client {
	client := &Client{
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		hub:  h,
	}

	h.mu.Lock()
	if !h.backfill(client, since) {
		h.snapshot(client)
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count, "since", since)
	if h.OnClients != nil {
		h.OnClients(count)
	}

	go client.writePump()
	go client.readPump()
	return client
}

// backfill queues the envelopes after since. Caller holds h.mu.
func (h *Hub) backfill(c *Client, since int64) bool {
	if since <= 0 || since > h.seq {
		return false
	}
	missed := h.replay.Range(since+1, h.seq)
	if int64(len(missed)) != h.seq-since || len(missed) > cap(c.send) {
		return false
	}
	for _, e := range missed {
		c.send <- e.Data
	}
	return true
}

// snapshot queues the current surface state. Caller holds h.mu.
func (h *Hub) snapshot(c *Client) {
	bars, _ := json.Marshal(h.bars.Bars())
	c.send <- appendEnvelope(nil, ChannelBars, "setData", bars, h.seq, true)

	ghost, _ := json.Marshal(h.ghostOrEmpty())
	c.send <- appendEnvelope(nil, ChannelGhost, "setData", ghost, h.seq, true)

	if h.overlay != nil {
		c.send <- appendEnvelope(nil, ChannelOverlay, "draw", h.overlay, h.seq, true)
	}
}

func (h *Hub) ghostOrEmpty() []model.Bar {
	if h.ghost == nil {
		return []model.Bar{}
	}
	return h.ghost
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client disconnected", "clients", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Seq returns the seq of the last broadcast envelope.
func (h *Hub) Seq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Bars returns the mirrored live history.
func (h *Hub) Bars() []model.Bar { return h.bars.Bars() }

// Ghosts returns the mirrored ghost queue.
func (h *Hub) Ghosts() []model.Bar {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Bar(nil), h.ghost...)
}

// Overlay returns the latest overlay frame, or nil.
func (h *Hub) Overlay() json.RawMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overlay
}

// Missed returns the buffered envelopes with seq in [from, to].
func (h *Hub) Missed(from, to int64) [][]byte {
	entries := h.replay.Range(from, to)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.RemoveClient(c)
	}
}

// hubSeries adapts one hub channel to surface.Series.
type hubSeries struct {
	h       *Hub
	channel string
}

func (s *hubSeries) SetData(bars []model.Bar) {
	cp := append([]model.Bar{}, bars...)
	if s.channel == ChannelBars {
		s.h.bars.SetData(cp)
	} else {
		s.h.mu.Lock()
		s.h.ghost = cp
		s.h.mu.Unlock()
	}
	data, _ := json.Marshal(cp)
	s.h.broadcast(s.channel, "setData", data)
}

func (s *hubSeries) Update(bar model.Bar) {
	if s.channel == ChannelBars {
		s.h.bars.Update(bar)
	} else {
		s.h.mu.Lock()
		n := len(s.h.ghost)
		if n > 0 && s.h.ghost[n-1].Time == bar.Time {
			s.h.ghost[n-1] = bar
		} else {
			s.h.ghost = append(s.h.ghost, bar)
		}
		s.h.mu.Unlock()
	}
	s.h.broadcast(s.channel, "update", bar.JSON())
}
