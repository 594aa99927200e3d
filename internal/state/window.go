package state

// SlidingWindow holds the most recent readings for one key, FIFO with
// eviction once capacity is reached. Capacity is fixed at construction.
type SlidingWindow struct {
	capacity int
	values   []float64
}

// NewSlidingWindow creates an empty window. Capacity must be positive;
// callers validate before construction.
func NewSlidingWindow(capacity int) *SlidingWindow {
	return &SlidingWindow{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

// Push appends a reading, evicting the oldest if the window is full.
func (w *SlidingWindow) Push(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values[len(w.values)-1] = v
		return
	}
	w.values = append(w.values, v)
}

// Values returns a copy of the window contents in arrival order.
func (w *SlidingWindow) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Len returns the number of readings currently held.
func (w *SlidingWindow) Len() int { return len(w.values) }

// Capacity returns the configured capacity.
func (w *SlidingWindow) Capacity() int { return w.capacity }

// Full reports whether the window has reached capacity.
func (w *SlidingWindow) Full() bool { return len(w.values) == w.capacity }

// Verdict is the analyzer's report for a full window.
type Verdict struct {
	Min     float64
	Max     float64
	Range   float64
	Stalled bool
}

// Analyze computes window statistics and the stall verdict for a snapshot.
// It returns false while the window is not yet full: no verdict, rather
// than a negative one. For equal window contents the verdict is identical
// regardless of how the values arrived.
func Analyze(snap Snapshot, stallThreshold float64) (Verdict, bool) {
	if !snap.WindowFull || len(snap.Window) == 0 {
		return Verdict{}, false
	}

	min, max := snap.Window[0], snap.Window[0]
	for _, v := range snap.Window[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	r := max - min
	return Verdict{
		Min:     min,
		Max:     max,
		Range:   r,
		Stalled: r <= stallThreshold,
	}, true
}
