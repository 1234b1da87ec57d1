// Package live owns the currently open bar. It applies driver output,
// detects bar-boundary flips, drives the micro-tick animation and the ghost
// queue, and keeps the overlay in step with every mutation.
//
// All methods must be called from the scheduler goroutine that also runs the
// animator's callbacks; the controller does no locking of its own.
package live

import (
	"errors"
	"fmt"
	"log/slog"

	"candlefeed/internal/feed/animator"
	"candlefeed/internal/feed/ghost"
	"candlefeed/internal/model"
	"candlefeed/internal/overlay"
	"candlefeed/internal/surface"
)

var (
	// ErrInvalidBarOrdering is returned when an incoming bar is neither the
	// live bar's time nor exactly one timeframe after it.
	ErrInvalidBarOrdering = errors.New("invalid bar ordering")

	// ErrInvalidBar is returned for bars with non-finite or unordered prices.
	ErrInvalidBar = errors.New("invalid bar")

	// ErrClosed is returned by Ingest after Close.
	ErrClosed = errors.New("live controller closed")
)

// State is the lifecycle state of the live candle.
type State int

const (
	StateUninitialized State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Viewport is the part of the chart surface the overlay needs.
type Viewport interface {
	overlay.Mapper
	Size() (width, height float64)
	Resize(width, height, pixelRatio float64)
}

// Hooks are optional observers, used for metrics.
type Hooks struct {
	OnOpen   func(first model.Bar)
	OnFlip   func(finalized, opened model.Bar)
	OnTick   func(u model.Update)
	OnStep   func(live model.Bar)
	OnReject func(u model.Update, err error)
	OnRedraw func(drawn bool)
}

// Controller is the live candle state machine.
type Controller struct {
	timeframe int64
	series    surface.Series
	ghosts    *ghost.Predictor
	anim      *animator.Animator
	canvas    overlay.Canvas
	view      Viewport
	log       *slog.Logger

	state  State
	live   model.Bar
	closed bool

	Hooks Hooks
}

// Config wires a Controller to its collaborators.
type Config struct {
	Timeframe int64 // seconds, > 0
	Series    surface.Series
	Ghosts    *ghost.Predictor
	Animator  *animator.Animator
	Canvas    overlay.Canvas
	View      Viewport
	Logger    *slog.Logger
}

// New creates a Controller in StateUninitialized.
func New(cfg Config) *Controller {
	if cfg.Timeframe <= 0 {
		cfg.Timeframe = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		timeframe: cfg.Timeframe,
		series:    cfg.Series,
		ghosts:    cfg.Ghosts,
		anim:      cfg.Animator,
		canvas:    cfg.Canvas,
		view:      cfg.View,
		log:       cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Live returns the open bar; ok is false before the first bar.
func (c *Controller) Live() (bar model.Bar, ok bool) {
	return c.live, c.state == StateOpen
}

// Ingest applies one update from the driver.
//
//   - First bar: adopted as the live bar, ghost queue initialized.
//   - Same time as the live bar: its micro-tick path is animated.
//   - Time one timeframe later: the live bar is finalized and a new one opened.
//
// Anything else is rejected with ErrInvalidBarOrdering and leaves state untouched.
func (c *Controller) Ingest(u model.Update) error {
	if c.closed {
		return ErrClosed
	}
	if !u.Bar.Finite() || !u.Bar.Ordered() {
		return c.reject(u, fmt.Errorf("%w: %+v", ErrInvalidBar, u.Bar))
	}

	switch {
	case c.state == StateUninitialized:
		c.open(u.Bar)
	case u.Time == c.live.Time:
		c.tick(u)
	case u.Time == c.live.Time+c.timeframe:
		c.flip(u.Bar)
	default:
		return c.reject(u, fmt.Errorf("%w: bar time %d, live time %d, timeframe %d",
			ErrInvalidBarOrdering, u.Time, c.live.Time, c.timeframe))
	}
	return nil
}

func (c *Controller) reject(u model.Update, err error) error {
	c.log.Warn("rejected bar",
		slog.Int64("bar_time", u.Time),
		slog.Int64("live_time", c.live.Time),
		slog.String("error", err.Error()))
	if c.Hooks.OnReject != nil {
		c.Hooks.OnReject(u, err)
	}
	return err
}

func (c *Controller) open(b model.Bar) {
	c.live = b
	c.state = StateOpen
	c.push(c.live)
	if c.ghosts != nil {
		c.ghosts.Init(b)
	}
	c.Redraw()

	c.log.Info("live candle opened", slog.Int64("bar_time", b.Time), slog.Float64("open", b.Open))
	if c.Hooks.OnOpen != nil {
		c.Hooks.OnOpen(b)
	}
}

func (c *Controller) tick(u model.Update) {
	if c.Hooks.OnTick != nil {
		c.Hooks.OnTick(u)
	}
	if len(u.MicroTicks) == 0 || c.anim == nil {
		return
	}
	c.anim.Start(c.live.Close, u.MicroTicks, c.step)
}

// step writes one interpolated close into the live bar.
func (c *Controller) step(price float64) {
	if c.closed || c.state != StateOpen {
		return
	}
	c.live.Close = price
	c.live.Include(price)
	c.push(c.live)
	c.Redraw()
	if c.Hooks.OnStep != nil {
		c.Hooks.OnStep(c.live)
	}
}

func (c *Controller) flip(next model.Bar) {
	// No frame from the outgoing bar's animation may land on the new bar.
	if c.anim != nil {
		c.anim.Cancel()
	}

	finalized := c.live
	finalized.Close = next.Open
	finalized.Include(next.Open)
	c.push(finalized)

	c.live = model.Flat(next.Time, next.Open)
	c.push(c.live)

	if c.ghosts != nil {
		c.ghosts.Regenerate(next)
	}
	c.Redraw()

	c.log.Debug("bar flipped",
		slog.Int64("finalized_time", finalized.Time),
		slog.Float64("finalized_close", finalized.Close),
		slog.Int64("bar_time", c.live.Time))
	if c.Hooks.OnFlip != nil {
		c.Hooks.OnFlip(finalized, c.live)
	}
}

func (c *Controller) push(b model.Bar) {
	if c.series != nil {
		c.series.Update(b)
	}
}

// Redraw repaints the overlay for the current live close. Drawing is
// skipped (not an error) when the surface cannot map the price yet.
func (c *Controller) Redraw() {
	if c.canvas == nil || c.view == nil || c.closed {
		return
	}
	w, h := c.view.Size()

	drawn := false
	if c.state == StateOpen {
		drawn = overlay.Draw(c.canvas, w, h, c.live.Close, c.view)
	} else {
		c.canvas.Clear(w, h)
	}
	if !drawn {
		c.log.Debug("overlay skipped: price not mappable", slog.Float64("price", c.live.Close))
	}
	if f, ok := c.canvas.(overlay.Flusher); ok {
		f.Flush()
	}
	if c.Hooks.OnRedraw != nil {
		c.Hooks.OnRedraw(drawn)
	}
}

// Resize records new canvas bounds and redraws; core state is unchanged.
func (c *Controller) Resize(width, height, pixelRatio float64) {
	if c.view == nil {
		return
	}
	c.view.Resize(width, height, pixelRatio)
	c.Redraw()
}

// Close cancels any in-flight animation and makes every later call a no-op.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	if c.anim != nil {
		c.anim.Cancel()
	}
	c.closed = true
	c.log.Info("live controller closed", slog.String("state", c.state.String()))
}
