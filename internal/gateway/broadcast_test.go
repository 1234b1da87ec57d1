package gateway

import (
	"encoding/json"
	"testing"
)

func TestAppendEnvelopeFormat(t *testing.T) {
	data := []byte(`{"time":100,"open":1.2345,"high":1.235,"low":1.234,"close":1.2348}`)
	buf := appendEnvelope(nil, ChannelBars, "update", data, 42, false)

	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != ChannelBars || env.Type != "update" {
		t.Errorf("channel/type: got %q/%q", env.Channel, env.Type)
	}
	if env.Seq != 42 {
		t.Errorf("seq: got %d, want 42", env.Seq)
	}
	if env.Snapshot {
		t.Error("live envelope should not be flagged as snapshot")
	}

	var bar struct {
		Time  int64   `json:"time"`
		Close float64 `json:"close"`
	}
	if err := json.Unmarshal(env.Data, &bar); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if bar.Time != 100 || bar.Close != 1.2348 {
		t.Errorf("data round trip: %+v", bar)
	}
}

func TestAppendEnvelopeSnapshotArray(t *testing.T) {
	buf := appendEnvelope(nil, ChannelGhost, "setData", []byte(`[]`), 7, true)

	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if !env.Snapshot || env.Seq != 7 {
		t.Errorf("snapshot envelope: %+v", env)
	}
	if string(env.Data) != "[]" {
		t.Errorf("data: got %s", env.Data)
	}
}

func TestAppendEnvelopeReusesBuffer(t *testing.T) {
	scratch := make([]byte, 0, 256)
	buf := appendEnvelope(scratch, ChannelOverlay, "draw", []byte(`{"ops":[]}`), 1, false)
	if &buf[0] != &scratch[:1][0] {
		t.Error("expected envelope to be built in the provided buffer")
	}
}
