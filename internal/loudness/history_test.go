// SPDX-License-Identifier: MIT
package loudness

import (
	"fmt"
	"slices"
	"testing"
)

func TestNewHistoryPrefilled(t *testing.T) {
	h := NewHistory(DefaultHistorySize)

	if h.Len() != DefaultHistorySize || h.Cap() != DefaultHistorySize {
		t.Fatalf("Len/Cap = %d/%d, want %d/%d", h.Len(), h.Cap(), DefaultHistorySize, DefaultHistorySize)
	}
	for i, v := range h.Snapshot() {
		if v != 0 {
			t.Errorf("snapshot[%d] = %v, want 0", i, v)
		}
	}
}

func TestHistoryPushScenario(t *testing.T) {
	h := NewHistory(30)
	for _, v := range []float64{-40.0, -35.0, -42.0} {
		h.Push(v)
	}

	snap := h.Snapshot()
	if len(snap) != 30 {
		t.Fatalf("len(snapshot) = %d, want 30", len(snap))
	}
	if got := snap[27:]; !slices.Equal(got, []float64{-40.0, -35.0, -42.0}) {
		t.Errorf("last three = %v", got)
	}
	for i, v := range snap[:27] {
		if v != 0 {
			t.Errorf("snapshot[%d] = %v, want 0", i, v)
		}
	}
}

func TestHistoryLengthAndOrder(t *testing.T) {
	tests := []struct {
		capacity, prefill, pushes int
	}{
		{5, 0, 0},
		{5, 0, 3},
		{5, 0, 5},
		{5, 0, 12},
		{5, 2, 2},
		{5, 2, 3},
		{5, 5, 1},
		{30, 30, 100},
		{1, 0, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("C=%d/init=%d/N=%d", tt.capacity, tt.prefill, tt.pushes), func(t *testing.T) {
			h := newHistory(tt.capacity, tt.prefill)

			// Model: the prefill zeros followed by every pushed value.
			model := make([]float64, tt.prefill)
			for i := range tt.pushes {
				v := -float64(i + 1)
				h.Push(v)
				model = append(model, v)
			}

			wantLen := min(tt.pushes+tt.prefill, tt.capacity)
			if h.Len() != wantLen {
				t.Fatalf("Len = %d, want %d", h.Len(), wantLen)
			}
			want := model[len(model)-wantLen:]
			if got := h.Snapshot(); !slices.Equal(got, want) {
				t.Errorf("Snapshot = %v, want %v", got, want)
			}
		})
	}
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(4)
	h.Push(-10)

	snap := h.Snapshot()
	snap[3] = 99

	if got := h.Snapshot()[3]; got != -10 {
		t.Errorf("mutating a snapshot changed the history: got %v", got)
	}

	h.Push(-20)
	if snap[2] != 0 {
		t.Errorf("pushing changed an earlier snapshot: %v", snap)
	}
}

func TestHistorySnapshotInto(t *testing.T) {
	h := NewHistory(3)
	h.Push(-1)
	h.Push(-2)
	h.Push(-3)
	h.Push(-4)

	dst := make([]float64, 3)
	if err := h.SnapshotInto(dst); err != nil {
		t.Fatalf("SnapshotInto: %v", err)
	}
	if !slices.Equal(dst, []float64{-2, -3, -4}) {
		t.Errorf("SnapshotInto = %v", dst)
	}

	if err := h.SnapshotInto(make([]float64, 2)); err == nil {
		t.Error("expected error for short destination")
	}
}

func TestHistoryInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -5} {
		t.Run(fmt.Sprintf("C=%d", capacity), func(t *testing.T) {
			h := NewHistory(capacity)
			if h.Cap() != 1 || h.Len() != 1 {
				t.Errorf("Cap/Len = %d/%d, want 1/1", h.Cap(), h.Len())
			}
			if got := h.Snapshot(); !slices.Equal(got, []float64{0}) {
				t.Errorf("Snapshot = %v, want [0]", got)
			}
		})
	}
}

func TestHistoryPushNoAllocs(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	dst := make([]float64, DefaultHistorySize)

	allocs := testing.AllocsPerRun(100, func() {
		h.Push(-12.5)
		_ = h.SnapshotInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push/SnapshotInto, got %.1f", allocs)
	}
}

func BenchmarkHistoryPushSnapshot(b *testing.B) {
	h := NewHistory(DefaultHistorySize)

	b.ReportAllocs()
	for b.Loop() {
		h.Push(-20)
		_ = h.Snapshot()
	}
}
