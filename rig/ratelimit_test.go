package rig

import (
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	w := NewSlidingWindow(100, time.Second)
	t0 := time.Unix(0, 0)

	if got := w.Available(t0); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
	w.Record(t0, 60)
	w.Record(t0.Add(400*time.Millisecond), 40)
	if got := w.Available(t0.Add(900 * time.Millisecond)); got != 0 {
		t.Fatalf("full window got %d, want 0", got)
	}
	// t0の60件だけが窓から外れる
	if got := w.Available(t0.Add(time.Second)); got != 60 {
		t.Fatalf("got %d, want 60", got)
	}
	if got := w.Count(t0.Add(1400 * time.Millisecond)); got != 0 {
		t.Fatalf("count got %d, want 0", got)
	}
}
