package gateway

import "encoding/json"

// Channel names carried in the envelope.
const (
	ChannelBars    = "bars"
	ChannelGhost   = "ghost"
	ChannelOverlay = "overlay"
)

// Envelope is one message pushed to chart clients.
// Snapshot envelopes are sent once on connect and repeat the current seq.
type Envelope struct {
	Channel  string          `json:"channel"`
	Type     string          `json:"type"` // setData | update | draw
	Data     json.RawMessage `json:"data"`
	Seq      int64           `json:"seq"`
	Snapshot bool            `json:"snapshot,omitempty"`
}

// ResizeMsg is sent by a chart client when its canvas changes size.
type ResizeMsg struct {
	Type   string  `json:"type"` // "RESIZE"
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}
