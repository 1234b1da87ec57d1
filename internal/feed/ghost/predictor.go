// Package ghost maintains the rolling window of speculative future bars
// ("ghost" candles) drawn ahead of the live bar.
package ghost

import (
	"candlefeed/internal/feed/ohlcgen"
	"candlefeed/internal/model"
	"candlefeed/internal/surface"
)

// DefaultLength is the number of ghost bars kept.
const DefaultLength = 6

// Predictor owns the ghost queue. The queue is only ever replaced whole:
// each regeneration builds a new slice and pushes it as a full SetData.
//
// Regeneration seeds from the tail of the current queue, not from the real
// bar that just finalized, so the projection continues the previous
// speculation and may drift away from the real price over many flips.
type Predictor struct {
	gen    *ohlcgen.Generator
	length int
	series surface.Series

	queue []model.Bar

	// OnRegenerate is called after each queue replacement (optional).
	OnRegenerate func(queue []model.Bar)
}

// New creates a predictor that chains gen length times and pushes the result
// to series (which may be nil).
func New(gen *ohlcgen.Generator, length int, series surface.Series) *Predictor {
	if length <= 0 {
		length = DefaultLength
	}
	return &Predictor{gen: gen, length: length, series: series}
}

// Init discards any queue and builds a fresh one from seed.
func (p *Predictor) Init(seed model.Bar) {
	p.replace(p.gen.Chain(seed, p.length))
}

// Regenerate rebuilds the queue seeded from its own last element, or from
// trigger when the queue is empty.
func (p *Predictor) Regenerate(trigger model.Bar) {
	seed := trigger
	if n := len(p.queue); n > 0 {
		seed = p.queue[n-1]
	}
	p.replace(p.gen.Chain(seed, p.length))
}

func (p *Predictor) replace(next []model.Bar) {
	p.queue = next
	if p.series != nil {
		p.series.SetData(next)
	}
	if p.OnRegenerate != nil {
		p.OnRegenerate(next)
	}
}

// Queue returns a copy of the current ghost bars.
func (p *Predictor) Queue() []model.Bar {
	return append([]model.Bar(nil), p.queue...)
}

// Len returns the number of ghost bars.
func (p *Predictor) Len() int { return len(p.queue) }

// Reset drops the queue without pushing anything.
func (p *Predictor) Reset() { p.queue = nil }
