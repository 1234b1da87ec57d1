// Package animator interpolates the live bar's close along a micro-tick
// path, one eased sample per rendering frame.
package animator

import (
	"log/slog"
	"time"

	"candlefeed/internal/feed/microtick"
	"candlefeed/internal/loop"
	"candlefeed/internal/model"
)

const (
	DefaultTickDuration = 80 * time.Millisecond
	DefaultPause        = 10 * time.Millisecond
)

// Config holds animation timing.
type Config struct {
	// TickDuration is how long the close takes to ease to one tick target.
	TickDuration time.Duration
	// Pause is the gap between reaching one target and starting the next.
	Pause time.Duration
}

func (c *Config) defaults() {
	if c.TickDuration <= 0 {
		c.TickDuration = DefaultTickDuration
	}
	if c.Pause <= 0 {
		c.Pause = DefaultPause
	}
}

// StepFunc receives every eased sample. It runs on the scheduler goroutine.
type StepFunc func(price float64)

// Animator runs at most one interpolation at a time. Starting a new one, or
// calling Cancel, revokes the pending frame/pause callback of the previous
// run; a revoked run never calls its StepFunc again.
type Animator struct {
	sched loop.Scheduler
	cfg   Config
	log   *slog.Logger

	gen     uint64 // identifies the active run
	active  bool
	pending loop.Handle

	// Optional hooks.
	OnDegenerate func(value float64) // non-finite target or sample skipped
	OnCancel     func()              // an unfinished run was cancelled
	OnFinish     func()              // a run consumed its whole path
}

// New creates an Animator scheduling on sched.
func New(sched loop.Scheduler, cfg Config, log *slog.Logger) *Animator {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Animator{sched: sched, cfg: cfg, log: log}
}

// Active reports whether a run is in flight.
func (a *Animator) Active() bool { return a.active }

// Start cancels any run in flight and animates from `from` through path,
// calling step with each sample. An empty path only cancels.
func (a *Animator) Start(from float64, path []float64, step StepFunc) {
	a.Cancel()
	if len(path) == 0 {
		return
	}
	a.gen++
	a.active = true
	r := &run{a: a, gen: a.gen, path: path, step: step, last: from}
	r.startTick(from)
}

// Cancel revokes the run in flight, if any.
func (a *Animator) Cancel() {
	if a.pending != 0 {
		a.sched.Cancel(a.pending)
		a.pending = 0
	}
	if a.active {
		a.active = false
		a.gen++
		if a.OnCancel != nil {
			a.OnCancel()
		}
	}
}

func (a *Animator) finish(gen uint64) {
	if a.gen != gen {
		return
	}
	a.active = false
	a.pending = 0
	if a.OnFinish != nil {
		a.OnFinish()
	}
}

func (a *Animator) degenerate(v float64) {
	a.log.Warn("skipping non-finite interpolation value", slog.Float64("value", v))
	if a.OnDegenerate != nil {
		a.OnDegenerate(v)
	}
}

// run is one pass over a tick path.
type run struct {
	a    *Animator
	gen  uint64
	path []float64
	step StepFunc

	i       int       // current target index
	from    float64   // start of the current tick
	start   time.Time // first frame of the current tick
	started bool
	last    float64 // last valid sample written
}

func (r *run) live() bool { return r.a.active && r.a.gen == r.gen }

func (r *run) startTick(from float64) {
	for r.i < len(r.path) && !model.IsFinite(r.path[r.i]) {
		r.a.degenerate(r.path[r.i])
		r.i++
	}
	if r.i >= len(r.path) {
		r.a.finish(r.gen)
		return
	}
	if !model.IsFinite(from) {
		from = r.last
	}
	r.from = from
	r.started = false
	r.a.pending = r.a.sched.RequestFrame(r.frame)
}

func (r *run) frame(now time.Time) {
	if !r.live() {
		return
	}
	r.a.pending = 0
	if !r.started {
		r.start, r.started = now, true
	}

	t := float64(now.Sub(r.start)) / float64(r.a.cfg.TickDuration)
	if t > 1 {
		t = 1
	}
	v := microtick.Ease(r.from, r.path[r.i], t)
	if model.IsFinite(v) {
		r.last = v
		r.step(v)
	} else {
		r.a.degenerate(v)
	}
	// step may have superseded this run.
	if !r.live() {
		return
	}

	if t < 1 {
		r.a.pending = r.a.sched.RequestFrame(r.frame)
		return
	}

	r.i++
	if r.i >= len(r.path) {
		r.a.finish(r.gen)
		return
	}
	next := r.last
	r.a.pending = r.a.sched.AfterFunc(r.a.cfg.Pause, func() {
		if !r.live() {
			return
		}
		r.a.pending = 0
		r.startTick(next)
	})
}
