// Package driver manufactures one synthetic bar per interval and feeds it,
// together with its eased micro-tick path, to the live candle state machine.
package driver

import (
	"log/slog"
	"time"

	"candlefeed/internal/feed/microtick"
	"candlefeed/internal/feed/ohlcgen"
	"candlefeed/internal/loop"
	"candlefeed/internal/model"
	"candlefeed/internal/surface"
)

const (
	DefaultInterval   = 1000 * time.Millisecond
	DefaultStartPrice = 1.2345
)

// Ingester consumes driver output. Satisfied by *live.Controller.
type Ingester interface {
	Ingest(u model.Update) error
}

// Config holds driver settings.
type Config struct {
	// Interval between bars.
	Interval time.Duration

	// MicroTickCount is the length of each bar's tick path.
	MicroTickCount int

	// StartPrice seeds the first bar.
	StartPrice float64

	// AnimateFlips re-feeds each new bar at its own time so the freshly
	// opened bar animates from open to close. The very first bar, which is
	// adopted whole, is never re-fed.
	AnimateFlips bool
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MicroTickCount <= 0 {
		c.MicroTickCount = microtick.DefaultCount
	}
	if c.StartPrice == 0 {
		c.StartPrice = DefaultStartPrice
	}
}

// Driver is the realtime bar source. Start and Stop must run on the
// scheduler goroutine.
type Driver struct {
	cfg    Config
	sched  loop.Scheduler
	gen    *ohlcgen.Generator
	target Ingester
	series surface.Series
	log    *slog.Logger

	last   model.Bar
	fed    int
	handle loop.Handle

	// Optional hooks.
	OnBar   func(u model.Update)
	OnError func(err error)
}

// New creates a driver. series receives the initial SetData([seed]) and may be nil.
func New(cfg Config, sched loop.Scheduler, gen *ohlcgen.Generator, target Ingester, series surface.Series, log *slog.Logger) *Driver {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Driver{cfg: cfg, sched: sched, gen: gen, target: target, series: series, log: log}
}

// Start seeds the chart with a flat bar one timeframe before now and begins
// emitting a bar every interval. Calling Start while running is a no-op.
func (d *Driver) Start() {
	if d.handle != 0 {
		return
	}
	now := d.sched.Now().Unix()
	d.last = model.Flat(now-d.gen.Timeframe(), d.cfg.StartPrice)
	if d.series != nil {
		d.series.SetData([]model.Bar{d.last})
	}
	d.handle = d.sched.Every(d.cfg.Interval, d.tick)
	d.log.Info("driver started",
		slog.Int64("seed_time", d.last.Time),
		slog.Float64("start_price", d.cfg.StartPrice),
		slog.Duration("interval", d.cfg.Interval))
}

// Stop cancels the interval timer. Safe to call more than once.
func (d *Driver) Stop() {
	if d.handle == 0 {
		return
	}
	d.sched.Cancel(d.handle)
	d.handle = 0
	d.log.Info("driver stopped", slog.Int("bars", d.fed))
}

// Running reports whether the interval timer is armed.
func (d *Driver) Running() bool { return d.handle != 0 }

// Last returns the most recently generated bar.
func (d *Driver) Last() model.Bar { return d.last }

func (d *Driver) tick() {
	next := d.gen.Next(d.last)
	u := model.Update{
		Bar:        next,
		MicroTicks: microtick.Path(next.Open, next.Close, d.cfg.MicroTickCount),
	}
	d.last = next

	if d.OnBar != nil {
		d.OnBar(u)
	}
	err := d.target.Ingest(u)
	if err != nil {
		d.fail(next, err)
		return
	}
	if d.cfg.AnimateFlips && d.fed > 0 {
		if err := d.target.Ingest(u); err != nil {
			d.fail(next, err)
		}
	}
	d.fed++
}

func (d *Driver) fail(b model.Bar, err error) {
	d.log.Warn("bar not ingested", slog.Int64("bar_time", b.Time), slog.String("error", err.Error()))
	if d.OnError != nil {
		d.OnError(err)
	}
}
