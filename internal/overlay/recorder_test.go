package overlay

import "testing"

func TestRecorder_FlushPublishesCopies(t *testing.T) {
	var got []DrawList
	r := NewRecorder(func() float64 { return 2 }, func(d DrawList) { got = append(got, d) })

	Draw(r, 300, 200, 1.5, fixedMapper{y: 50, ok: true})
	r.Flush()
	Draw(r, 300, 200, 1.5, fixedMapper{ok: false})
	r.Flush()

	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if len(got[0].Ops) != 9 || len(got[1].Ops) != 1 {
		t.Errorf("frames share state: %d ops then %d ops", len(got[0].Ops), len(got[1].Ops))
	}
	if got[0].PixelRatio != 2 {
		t.Errorf("expected pixel ratio 2, got %v", got[0].PixelRatio)
	}

	latest := r.Latest()
	if len(latest.Ops) != 1 || latest.Ops[0].Op != "clear" {
		t.Errorf("latest should be the cleared frame, got %+v", latest.Ops)
	}
}
