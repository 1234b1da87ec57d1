package model

// Update is what the realtime driver hands to the live candle state machine:
// the next synthetic bar plus the eased path its close should travel along.
type Update struct {
	Bar
	MicroTicks []float64 `json:"microTicks,omitempty"`
}
