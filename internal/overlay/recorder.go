package overlay

import "sync"

// Recorder is a DrawList canvas that, on Flush, hands a copy of the finished
// frame to each sink and keeps it as the latest frame for late joiners.
type Recorder struct {
	DrawList

	ratio func() float64
	sinks []func(DrawList)

	mu     sync.RWMutex
	latest DrawList
}

// NewRecorder creates a Recorder. ratio supplies the device pixel ratio
// stamped on each frame (1 if nil).
func NewRecorder(ratio func() float64, sinks ...func(DrawList)) *Recorder {
	return &Recorder{ratio: ratio, sinks: sinks}
}

// Flush implements Flusher.
func (r *Recorder) Flush() {
	frame := r.Clone()
	frame.PixelRatio = 1
	if r.ratio != nil {
		frame.PixelRatio = r.ratio()
	}

	r.mu.Lock()
	r.latest = frame
	r.mu.Unlock()

	for _, sink := range r.sinks {
		sink(frame.Clone())
	}
}

// Latest returns the most recently flushed frame.
func (r *Recorder) Latest() DrawList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest.Clone()
}
