package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"candlefeed/internal/model"
	"candlefeed/internal/overlay"
	"candlefeed/internal/surface"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultQueueSize = 1024
	defaultLatestTTL = 30 * time.Minute
)

// Channel names used on the wire. Keys are suffixed with ":<symbol>".
const (
	ChannelBars    = "bars"
	ChannelGhost   = "ghost"
	ChannelOverlay = "overlay"
)

// Commander is the subset of the Redis client the publisher needs.
// *goredis.Client satisfies it.
type Commander interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// PublisherConfig configures the Redis mirror.
type PublisherConfig struct {
	Addr      string
	Password  string
	DB        int
	Symbol    string
	QueueSize int           // pending messages before drops (default 1024)
	LatestTTL time.Duration // TTL of latest:bar:<symbol> (default 30m)
}

func (c *PublisherConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.LatestTTL <= 0 {
		c.LatestTTL = defaultLatestTTL
	}
	if c.Symbol == "" {
		c.Symbol = "EURUSD"
	}
}

// Message is one chart mutation as published on pub:<channel>:<symbol>.
type Message struct {
	Type string          `json:"type"` // setData | update | draw
	Data json.RawMessage `json:"data"`
}

type job struct {
	channel string
	msg     Message
	latest  []byte // non-nil: also SET latest:bar:<symbol>
}

// Publisher mirrors chart mutations to Redis PubSub. Series and overlay
// calls only enqueue; a single Run goroutine talks to Redis through the
// circuit breaker, so a slow or dead Redis never stalls the feed.
type Publisher struct {
	cmd    Commander
	cb     *CircuitBreaker
	cfg    PublisherConfig
	log    *slog.Logger
	queue  chan job
	client *goredis.Client

	mu         sync.Mutex
	latestBar  []byte
	needResync bool

	// Callbacks (optional)
	OnPublish func(d time.Duration) // successful round trip
	OnError   func(err error)       // failed or short-circuited publish
	OnDrop    func()                // queue full
}

// Dial creates a Redis client and pings it. The client is returned even
// when the ping fails: go-redis reconnects lazily and the circuit breaker
// absorbs the failures until Redis comes back.
func Dial(ctx context.Context, cfg PublisherConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewPublisher creates a publisher writing through cmd. cb may be nil.
func NewPublisher(cmd Commander, cb *CircuitBreaker, cfg PublisherConfig, log *slog.Logger) *Publisher {
	cfg.defaults()
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		cmd:   cmd,
		cb:    cb,
		cfg:   cfg,
		log:   log.With("component", "redis"),
		queue: make(chan job, cfg.QueueSize),
	}
	if c, ok := cmd.(*goredis.Client); ok {
		p.client = c
	}

	// The latest bar key may have gone stale while the breaker was open.
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateOpen {
			p.mu.Lock()
			p.needResync = true
			p.mu.Unlock()
		}
	}
	return p
}

// Client returns the underlying Redis client for health checks, or nil.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the circuit breaker guarding Redis calls.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Channel returns the PubSub channel for a logical channel name.
func (p *Publisher) Channel(name string) string {
	return "pub:" + name + ":" + p.cfg.Symbol
}

// LatestKey returns the key holding the most recent live bar.
func (p *Publisher) LatestKey() string {
	return "latest:bar:" + p.cfg.Symbol
}

// Series returns a surface.Series that mirrors mutations to channel name.
// Updates on ChannelBars also refresh LatestKey.
func (p *Publisher) Series(name string) surface.Series {
	return &series{p: p, name: name}
}

// PublishOverlay mirrors an overlay frame. Its signature fits an
// overlay.Recorder sink.
func (p *Publisher) PublishOverlay(dl overlay.DrawList) {
	p.enqueue(job{
		channel: p.Channel(ChannelOverlay),
		msg:     Message{Type: "draw", Data: dl.JSON()},
	})
}

func (p *Publisher) enqueue(j job) {
	select {
	case p.queue <- j:
	default:
		if p.OnDrop != nil {
			p.OnDrop()
		}
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.publish(ctx, j)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, j job) {
	payload, err := json.Marshal(j.msg)
	if err != nil {
		p.fail(err)
		return
	}

	start := time.Now()
	err = p.cb.Execute(func() error {
		if err := p.cmd.Publish(ctx, j.channel, payload).Err(); err != nil {
			return err
		}
		if j.latest != nil {
			return p.cmd.Set(ctx, p.LatestKey(), j.latest, p.cfg.LatestTTL).Err()
		}
		return p.resync(ctx)
	})
	if err != nil {
		p.fail(err)
		return
	}
	if p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
}

// resync restores the latest bar key after the breaker recovered.
func (p *Publisher) resync(ctx context.Context) error {
	p.mu.Lock()
	need, bar := p.needResync, p.latestBar
	p.mu.Unlock()
	if !need || bar == nil {
		return nil
	}
	if err := p.cmd.Set(ctx, p.LatestKey(), bar, p.cfg.LatestTTL).Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.needResync = false
	p.mu.Unlock()
	return nil
}

func (p *Publisher) fail(err error) {
	if err != ErrCircuitOpen {
		p.log.Warn("publish failed", "error", err)
	}
	if p.OnError != nil {
		p.OnError(err)
	}
}

// series adapts one PubSub channel to surface.Series.
type series struct {
	p    *Publisher
	name string
}

func (s *series) SetData(bars []model.Bar) {
	data, err := json.Marshal(bars)
	if err != nil {
		s.p.fail(err)
		return
	}
	s.p.enqueue(job{channel: s.p.Channel(s.name), msg: Message{Type: "setData", Data: data}})
}

func (s *series) Update(bar model.Bar) {
	data := bar.JSON()
	j := job{channel: s.p.Channel(s.name), msg: Message{Type: "update", Data: data}}
	if s.name == ChannelBars {
		j.latest = data
		s.p.mu.Lock()
		s.p.latestBar = data
		s.p.mu.Unlock()
	}
	s.p.enqueue(j)
}
