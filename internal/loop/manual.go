package loop

import (
	"sort"
	"time"
)

// Manual is a virtual-clock Scheduler. Nothing runs until Advance is called,
// and then callbacks run synchronously on the caller's goroutine in time
// order. Not safe for concurrent use.
type Manual struct {
	start time.Time
	now   time.Time
	frame time.Duration

	nextID Handle
	seq    uint64
	tasks  map[Handle]*manualTask
}

type manualTask struct {
	at     time.Time
	period time.Duration
	seq    uint64
	fn     func()
	frame  func(time.Time)
}

// NewManual returns a Manual clock starting at start with the given frame
// interval (DefaultFrameInterval if zero). Frames fire on a fixed grid
// anchored at start.
func NewManual(start time.Time, frameInterval time.Duration) *Manual {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Manual{
		start: start,
		now:   start,
		frame: frameInterval,
		tasks: make(map[Handle]*manualTask),
	}
}

// RequestFrame implements Scheduler.
func (m *Manual) RequestFrame(fn func(now time.Time)) Handle {
	n := m.now.Sub(m.start)/m.frame + 1
	return m.add(&manualTask{at: m.start.Add(n * m.frame), frame: fn})
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	return m.add(&manualTask{at: m.now.Add(d), fn: fn})
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	return m.add(&manualTask{at: m.now.Add(d), period: d, fn: fn})
}

// Cancel implements Scheduler.
func (m *Manual) Cancel(h Handle) { delete(m.tasks, h) }

// Now implements Scheduler.
func (m *Manual) Now() time.Time { return m.now }

// Pending returns the number of scheduled callbacks.
func (m *Manual) Pending() int { return len(m.tasks) }

// Advance moves the clock forward by d, running every callback that falls
// due on the way, including ones scheduled by earlier callbacks.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		h, t := m.next(target)
		if t == nil {
			break
		}
		m.now = t.at
		if t.period > 0 {
			t.at = t.at.Add(t.period)
			m.seq++
			t.seq = m.seq
		} else {
			delete(m.tasks, h)
		}
		if t.frame != nil {
			t.frame(m.now)
		} else {
			t.fn()
		}
	}
	m.now = target
}

// next returns the earliest task due at or before target.
func (m *Manual) next(target time.Time) (Handle, *manualTask) {
	handles := make([]Handle, 0, len(m.tasks))
	for h, t := range m.tasks {
		if !t.at.After(target) {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return 0, nil
	}
	sort.Slice(handles, func(i, j int) bool {
		a, b := m.tasks[handles[i]], m.tasks[handles[j]]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		return a.seq < b.seq
	})
	return handles[0], m.tasks[handles[0]]
}

func (m *Manual) add(t *manualTask) Handle {
	m.nextID++
	m.seq++
	t.seq = m.seq
	m.tasks[m.nextID] = t
	return m.nextID
}
