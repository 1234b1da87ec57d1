// Package overlay draws the custom layer that sits on top of the candle
// chart: a horizontal line at the live price, the price label, and a fixed
// horizontal reference grid.
//
// Draw is stateless and cheap, so it is called after every live-candle
// mutation.
package overlay

import "strconv"

// Align is the horizontal anchor of a text op.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Canvas is a 2D drawing surface.
type Canvas interface {
	// Clear erases the whole surface and records its current size.
	Clear(width, height float64)
	Line(x0, y0, x1, y1 float64, color string, lineWidth float64)
	Text(text string, x, y float64, align Align, color, font string)
}

// Mapper converts a price to a y coordinate; ok is false when unavailable.
type Mapper interface {
	PriceToCoordinate(price float64) (y float64, ok bool)
}

// Style is opaque to the feed; only the drawing code reads it.
type Style struct {
	PriceLineColor string
	LabelColor     string
	LabelFont      string
	GridColor      string
	GridRows       int

	// LabelPad is the gap between the label's right edge and the canvas edge.
	LabelPad float64
	// LabelRise lifts the label baseline above the price line.
	LabelRise float64
}

// DefaultStyle matches the dark chart theme.
var DefaultStyle = Style{
	PriceLineColor: "#45caff",
	LabelColor:     "#45caff",
	LabelFont:      "12px monospace",
	GridColor:      "rgba(255,255,255,0.08)",
	GridRows:       6,
	LabelPad:       8,
	LabelRise:      6,
}

// Draw renders the overlay for the live price using DefaultStyle.
// It reports whether anything beyond the clear was drawn.
func Draw(cv Canvas, width, height, price float64, m Mapper) bool {
	return DrawStyled(cv, width, height, price, m, DefaultStyle)
}

// DrawStyled is Draw with an explicit style.
func DrawStyled(cv Canvas, width, height, price float64, m Mapper, st Style) bool {
	cv.Clear(width, height)
	if m == nil {
		return false
	}
	y, ok := m.PriceToCoordinate(price)
	if !ok {
		return false
	}

	// +0.5 centres 1px lines on a pixel row.
	cv.Line(0, y+0.5, width, y+0.5, st.PriceLineColor, 1)
	cv.Text(FormatPrice(price), width-st.LabelPad, y-st.LabelRise, AlignRight, st.LabelColor, st.LabelFont)

	rows := st.GridRows
	if rows <= 0 {
		rows = DefaultStyle.GridRows
	}
	for i := 0; i < rows; i++ {
		gy := height / float64(rows) * float64(i)
		cv.Line(0, gy+0.5, width, gy+0.5, st.GridColor, 1)
	}
	return true
}

// FormatPrice formats a price with 5 decimal places.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 5, 64)
}
