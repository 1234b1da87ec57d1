package surface

import (
	"math"
	"sync"

	"candlefeed/internal/model"
)

const (
	// DefaultVisibleBars is how many recent live bars the price scale fits.
	DefaultVisibleBars = 120

	// scaleMargin is the fraction of the price span left empty above and below.
	scaleMargin = 0.1

	// minSpan keeps a flat series from collapsing the scale to zero height.
	minSpan = 1e-6
)

// Chart is the server-side model of the chart surface: the live and ghost
// candle series, the canvas size, and an autoscaling right price scale.
type Chart struct {
	Live  *Store
	Ghost *Store

	mu         sync.RWMutex
	width      float64
	height     float64
	pixelRatio float64
	visible    int
}

// NewChart creates a chart over live and ghost with the given CSS canvas
// size and device pixel ratio.
func NewChart(live, ghost *Store, width, height, pixelRatio float64) *Chart {
	c := &Chart{Live: live, Ghost: ghost, visible: DefaultVisibleBars}
	c.Resize(width, height, pixelRatio)
	return c
}

// Resize records new container bounds. Non-positive values are ignored.
func (c *Chart) Resize(width, height, pixelRatio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width > 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
	if pixelRatio > 0 {
		c.pixelRatio = pixelRatio
	} else if c.pixelRatio == 0 {
		c.pixelRatio = 1
	}
}

// Size returns the canvas size in CSS pixels.
func (c *Chart) Size() (width, height float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// PixelSize returns the canvas backing-store size: CSS size × pixel ratio.
func (c *Chart) PixelSize() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int(math.Round(c.width * c.pixelRatio)), int(math.Round(c.height * c.pixelRatio))
}

// PixelRatio returns the device pixel ratio.
func (c *Chart) PixelRatio() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pixelRatio
}

// SetVisibleBars sets how many recent live bars the scale fits.
func (c *Chart) SetVisibleBars(n int) {
	c.mu.Lock()
	c.visible = n
	c.mu.Unlock()
}

// PriceToCoordinate implements CoordinateMapper. The scale spans the visible
// live bars and the ghost bars; prices outside the padded span are off-scale.
func (c *Chart) PriceToCoordinate(price float64) (float64, bool) {
	if !model.IsFinite(price) {
		return 0, false
	}
	c.mu.RLock()
	height, visible := c.height, c.visible
	c.mu.RUnlock()
	if height <= 0 {
		return 0, false
	}

	lo, hi, ok := c.Live.rangeOf(visible)
	if !ok {
		return 0, false
	}
	if glo, ghi, gok := c.Ghost.rangeOf(0); gok {
		lo, hi = math.Min(lo, glo), math.Max(hi, ghi)
	}

	span := hi - lo
	if span < minSpan {
		mid := (hi + lo) / 2
		lo, hi, span = mid-minSpan/2, mid+minSpan/2, minSpan
	}
	top := hi + span*scaleMargin
	full := span * (1 + 2*scaleMargin)

	y := (top - price) / full * height
	if !model.IsFinite(y) || y < 0 || y > height {
		return 0, false
	}
	return y, true
}
