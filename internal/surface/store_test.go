package surface

import (
	"testing"

	"candlefeed/internal/model"
)

func TestStore_UpdateUpserts(t *testing.T) {
	s := NewStore("live", 10, nil)

	s.Update(model.Flat(100, 1.0))
	s.Update(model.Bar{Time: 100, Open: 1.0, High: 1.2, Low: 1.0, Close: 1.1})
	s.Update(model.Flat(101, 1.1))

	bars := s.Bars()
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 1.1 || bars[0].High != 1.2 {
		t.Errorf("same-time update should replace, got %+v", bars[0])
	}
	if bars[1].Time != 101 {
		t.Errorf("expected appended bar at 101, got %d", bars[1].Time)
	}
}

func TestStore_RejectsOlderBar(t *testing.T) {
	s := NewStore("live", 10, nil)
	var rejected []model.Bar
	s.OnReject = func(b model.Bar) { rejected = append(rejected, b) }

	s.Update(model.Flat(200, 1))
	s.Update(model.Flat(199, 1))

	if s.Len() != 1 {
		t.Errorf("expected older bar to be dropped, have %d bars", s.Len())
	}
	if s.Rejected() != 1 || len(rejected) != 1 {
		t.Errorf("expected one rejection, got %d (hook %d)", s.Rejected(), len(rejected))
	}
}

func TestStore_SetDataReplacesAndTrims(t *testing.T) {
	s := NewStore("ghost", 3, nil)
	s.Update(model.Flat(1, 1))

	in := []model.Bar{model.Flat(10, 1), model.Flat(11, 1), model.Flat(12, 1), model.Flat(13, 1)}
	s.SetData(in)
	in[3].Close = 99 // caller's slice must not alias the store

	bars := s.Bars()
	if len(bars) != 3 || bars[0].Time != 11 || bars[2].Time != 13 {
		t.Fatalf("expected bars 11..13, got %+v", bars)
	}
	if bars[2].Close != 1 {
		t.Error("store aliases caller slice")
	}
}

func TestStore_HistoryBound(t *testing.T) {
	s := NewStore("live", 5, nil)
	for i := int64(0); i < 20; i++ {
		s.Update(model.Flat(i, 1))
	}
	bars := s.Bars()
	if len(bars) != 5 || bars[0].Time != 15 || bars[4].Time != 19 {
		t.Errorf("expected last 5 bars 15..19, got %+v", bars)
	}
}

type countingSeries struct {
	sets, updates int
}

func (c *countingSeries) SetData([]model.Bar) { c.sets++ }
func (c *countingSeries) Update(model.Bar)    { c.updates++ }

func TestTee(t *testing.T) {
	a, b := &countingSeries{}, &countingSeries{}
	s := Tee(a, nil, b)

	s.SetData(nil)
	s.Update(model.Flat(1, 1))
	s.Update(model.Flat(2, 1))

	for i, c := range []*countingSeries{a, b} {
		if c.sets != 1 || c.updates != 2 {
			t.Errorf("series %d: sets=%d updates=%d", i, c.sets, c.updates)
		}
	}
}
