// Package surface models the chart rendering surface the feed pushes bars
// to: candle series with full-replacement and upsert semantics, and the
// price-to-pixel mapping the overlay needs.
package surface

import "candlefeed/internal/model"

// Series is one candle series on the chart.
type Series interface {
	// SetData replaces the series contents with bars (ordered by time).
	SetData(bars []model.Bar)

	// Update upserts the most recent bar: replaces the last bar if the time
	// matches, appends otherwise.
	Update(bar model.Bar)
}

// CoordinateMapper converts a price to a vertical pixel coordinate.
// ok is false when the price cannot be placed (no data yet, off-scale).
type CoordinateMapper interface {
	PriceToCoordinate(price float64) (y float64, ok bool)
}

// Tee returns a Series that forwards every call to each of series in order.
// Nil entries are skipped.
func Tee(series ...Series) Series {
	out := make(tee, 0, len(series))
	for _, s := range series {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Series

func (t tee) SetData(bars []model.Bar) {
	for _, s := range t {
		s.SetData(bars)
	}
}

func (t tee) Update(bar model.Bar) {
	for _, s := range t {
		s.Update(bar)
	}
}
