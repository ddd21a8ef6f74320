// SPDX-License-Identifier: MIT
package loudness

import "fmt"

// DefaultHistorySize is the number of levels kept for display.
const DefaultHistorySize = 30

// History is a fixed-capacity FIFO of decibel levels stored as a ring.
// Once full, every Push evicts the single oldest value. Order is always
// oldest to newest.
//
// History has a single writer. Readers get copies via Snapshot or
// SnapshotInto and never alias the ring.
type History struct {
	ring  []float64
	start int // index of the oldest value
	size  int
}

// NewHistory returns a history of the given capacity pre-filled with zeros,
// so consumers always see a full-length sequence.
func NewHistory(capacity int) *History {
	capacity = max(capacity, 1)
	return newHistory(capacity, capacity)
}

// newHistory returns a history holding prefill zeros.
func newHistory(capacity, prefill int) *History {
	if capacity < 1 {
		capacity = 1
	}
	prefill = min(max(prefill, 0), capacity)
	return &History{
		ring: make([]float64, capacity),
		size: prefill,
	}
}

// Push appends v, evicting the oldest value when the history is full.
func (h *History) Push(v float64) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = v
		h.size++
		return
	}
	h.ring[h.start] = v
	h.start = (h.start + 1) % capacity
}

// Len returns the number of values held.
func (h *History) Len() int {
	return h.size
}

// Cap returns the fixed capacity.
func (h *History) Cap() int {
	return len(h.ring)
}

// Snapshot returns a copy of the values, oldest first.
func (h *History) Snapshot() []float64 {
	out := make([]float64, h.size)
	h.copyInto(out)
	return out
}

// SnapshotInto copies the values, oldest first, into dst. The destination
// must have exactly Len() elements.
func (h *History) SnapshotInto(dst []float64) error {
	if len(dst) != h.size {
		return fmt.Errorf("destination slice length %d does not match history length %d", len(dst), h.size)
	}
	h.copyInto(dst)
	return nil
}

func (h *History) copyInto(dst []float64) {
	end := h.start + h.size
	if end <= len(h.ring) {
		copy(dst, h.ring[h.start:end])
		return
	}
	n := copy(dst, h.ring[h.start:])
	copy(dst[n:], h.ring[:end-len(h.ring)])
}
