package overlay

import "encoding/json"

// Op is one recorded drawing command.
// Line ops use X0,Y0 → X1,Y1; text ops are anchored at X0,Y0.
type Op struct {
	Op        string  `json:"op"` // "clear", "line", "text"
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1,omitempty"`
	Y1        float64 `json:"y1,omitempty"`
	Text      string  `json:"text,omitempty"`
	Align     Align   `json:"align,omitempty"`
	Color     string  `json:"color,omitempty"`
	Font      string  `json:"font,omitempty"`
	LineWidth float64 `json:"lineWidth,omitempty"`
}

// DrawList is a Canvas that records ops so they can be replayed by a remote
// chart client onto its real canvas.
type DrawList struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PixelRatio float64 `json:"pixelRatio"`
	Ops        []Op    `json:"ops"`
}

// Clear implements Canvas. Previously recorded ops are discarded.
func (d *DrawList) Clear(width, height float64) {
	d.Width, d.Height = width, height
	d.Ops = append(d.Ops[:0], Op{Op: "clear", X1: width, Y1: height})
}

// Line implements Canvas.
func (d *DrawList) Line(x0, y0, x1, y1 float64, color string, lineWidth float64) {
	d.Ops = append(d.Ops, Op{Op: "line", X0: x0, Y0: y0, X1: x1, Y1: y1, Color: color, LineWidth: lineWidth})
}

// Text implements Canvas.
func (d *DrawList) Text(text string, x, y float64, align Align, color, font string) {
	d.Ops = append(d.Ops, Op{Op: "text", X0: x, Y0: y, Text: text, Align: align, Color: color, Font: font})
}

// Clone returns a deep copy safe to hand to another goroutine.
func (d *DrawList) Clone() DrawList {
	cp := *d
	cp.Ops = append([]Op(nil), d.Ops...)
	return cp
}

// JSON returns the JSON-encoded draw list.
func (d *DrawList) JSON() []byte {
	b, _ := json.Marshal(d)
	return b
}

// Flusher is implemented by canvases that publish a frame once drawing
// is complete.
type Flusher interface {
	Flush()
}
