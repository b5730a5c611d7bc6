// Package ring implements the bounded circular buffer of transaction
// (start,end) timestamp pairs used to pace workers toward a target
// transaction rate (spec component C4).
package ring

import "sync"

// entry is one (start_ns, end_ns) pair recorded by a committed transaction.
type entry struct {
	start, end int64
}

// History is a fixed-capacity ring buffer. The zero value is not usable;
// construct with New. A History is owned by exactly one worker — it is never
// shared across goroutines — but guards its state with a mutex anyway since
// getSleepTime and add are cheap and the invariant ("one owner") is a design
// convention, not something the type itself enforces.
type History struct {
	mu       sync.Mutex
	buf      []entry
	capacity int
	size     int
	first    int // index of the oldest valid entry
}

// New returns a History with the given fixed capacity. Per spec §3, capacity
// is computed by the caller as max(rate*threads*duration, 10000).
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		buf:      make([]entry, capacity),
		capacity: capacity,
	}
}

// Add appends a (start,end) pair. Once full, the oldest entry is overwritten
// and first advances.
func (h *History) Add(start, end int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size < h.capacity {
		idx := (h.first + h.size) % h.capacity
		h.buf[idx] = entry{start, end}
		h.size++
		return
	}
	// Full: overwrite the oldest slot and advance first.
	h.buf[h.first] = entry{start, end}
	h.first = (h.first + 1) % h.capacity
}

// Size returns the current number of valid entries (size <= capacity always).
func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// GetSleepTime computes the pacing sleep, in nanoseconds, needed to pull the
// sliding average transaction time toward targetNs (spec §4.4):
//
//	size <= 1            -> 0
//	span  = end(last) - start(first)
//	avg   = span / size
//	avg < target         -> size * (target - avg)
//	otherwise            -> 0
//
// This amortises catch-up: sleeping for the cumulative deficit across `size`
// transactions pulls the sliding average toward target without oscillation.
func (h *History) GetSleepTime(targetNs int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size <= 1 {
		return 0
	}

	lastIdx := (h.first + h.size - 1) % h.capacity
	span := h.buf[lastIdx].end - h.buf[h.first].start
	avg := span / int64(h.size)

	if avg < targetNs {
		return int64(h.size) * (targetNs - avg)
	}
	return 0
}
