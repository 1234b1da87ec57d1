package surface

import (
	"log/slog"
	"sync"

	"candlefeed/internal/model"
)

// DefaultHistory bounds how many bars a Store keeps.
const DefaultHistory = 500

// Store is an in-memory Series. It keeps the most recent bars so late
// joining chart clients can be sent a full snapshot, and so the chart's
// price scale can autoscale over what is on screen.
//
// Goroutine-safe: the feed loop writes while gateway clients read snapshots.
type Store struct {
	name string
	max  int
	log  *slog.Logger

	mu       sync.RWMutex
	bars     []model.Bar
	rejected int

	// OnReject is called when Update receives a bar older than the last one.
	OnReject func(bar model.Bar)
}

// NewStore creates a Store keeping at most max bars (DefaultHistory if <= 0).
func NewStore(name string, max int, log *slog.Logger) *Store {
	if max <= 0 {
		max = DefaultHistory
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{name: name, max: max, log: log, bars: make([]model.Bar, 0, 64)}
}

// Name returns the series name.
func (s *Store) Name() string { return s.name }

// SetData implements Series.
func (s *Store) SetData(bars []model.Bar) {
	if len(bars) > s.max {
		bars = bars[len(bars)-s.max:]
	}
	cp := make([]model.Bar, len(bars))
	copy(cp, bars)

	s.mu.Lock()
	s.bars = cp
	s.mu.Unlock()
}

// Update implements Series. A bar older than the last stored bar is
// rejected, matching chart libraries that refuse to rewrite history.
func (s *Store) Update(bar model.Bar) {
	s.mu.Lock()
	n := len(s.bars)
	switch {
	case n > 0 && s.bars[n-1].Time == bar.Time:
		s.bars[n-1] = bar
	case n == 0 || bar.Time > s.bars[n-1].Time:
		s.bars = append(s.bars, bar)
		if len(s.bars) > s.max {
			// Shift down instead of reslicing so the backing array doesn't grow forever.
			copy(s.bars, s.bars[len(s.bars)-s.max:])
			s.bars = s.bars[:s.max]
		}
	default:
		s.rejected++
		last := s.bars[n-1].Time
		s.mu.Unlock()
		s.log.Warn("series update older than last bar",
			slog.String("series", s.name),
			slog.Int64("bar_time", bar.Time),
			slog.Int64("last_time", last))
		if s.OnReject != nil {
			s.OnReject(bar)
		}
		return
	}
	s.mu.Unlock()
}

// Bars returns a copy of the stored bars, oldest first.
func (s *Store) Bars() []model.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Last returns the most recent bar.
func (s *Store) Last() (model.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Len returns the number of stored bars.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Rejected returns how many out-of-order updates were refused.
func (s *Store) Rejected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejected
}

// rangeOf returns the low/high extent of the last n bars (all if n <= 0).
func (s *Store) rangeOf(n int) (lo, hi float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.bars
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	for i, b := range bars {
		if i == 0 {
			lo, hi = b.Low, b.High
			continue
		}
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	return lo, hi, len(bars) > 0
}
