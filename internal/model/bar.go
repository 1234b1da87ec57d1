package model

import (
	"encoding/json"
	"math"
)

// Bar is one OHLC price bar as exchanged with the chart surface.
// Time is the bucket start in Unix seconds.
type Bar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Flat returns a bar whose four prices all equal price.
func Flat(time int64, price float64) Bar {
	return Bar{Time: time, Open: price, High: price, Low: price, Close: price}
}

// Finite reports whether all four prices are finite numbers.
func (b Bar) Finite() bool {
	return IsFinite(b.Open) && IsFinite(b.High) && IsFinite(b.Low) && IsFinite(b.Close)
}

// Ordered reports whether high >= max(open, close) and low <= min(open, close).
func (b Bar) Ordered() bool {
	return b.High >= math.Max(b.Open, b.Close) && b.Low <= math.Min(b.Open, b.Close)
}

// Include widens high/low so that price lies inside the bar's range.
func (b *Bar) Include(price float64) {
	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// IsFinite reports whether f is neither NaN nor ±Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
