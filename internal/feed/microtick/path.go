// Package microtick builds the eased intra-bar price path a bar's close
// travels along while it is animated.
package microtick

import "math"

// DefaultCount is the number of ticks per bar.
const DefaultCount = 6

// Ease returns the quarter-sine ease-out between from and to at progress
// t ∈ [0, 1]. Increments shrink as t approaches 1.
func Ease(from, to, t float64) float64 {
	if t >= 1 {
		return to
	}
	if t <= 0 {
		return from
	}
	return from + (to-from)*math.Sin(t*math.Pi/2)
}

// Path returns count target prices from fromPrice to toPrice, sampled at
// t = i/count for i = 1..count. Every tick lies within
// [min(from, to), max(from, to)] and the last tick is exactly toPrice.
func Path(fromPrice, toPrice float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	lo, hi := math.Min(fromPrice, toPrice), math.Max(fromPrice, toPrice)

	ticks := make([]float64, count)
	for i := 1; i <= count; i++ {
		v := Ease(fromPrice, toPrice, float64(i)/float64(count))
		// Rounding in from + (to-from)*s can land one ulp outside the range.
		ticks[i-1] = math.Min(hi, math.Max(lo, v))
	}
	ticks[count-1] = toPrice
	return ticks
}
