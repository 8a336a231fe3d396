package rig

import (
	"testing"
	"time"
)

func TestCommandQueue_ShedsOldestSecondary(t *testing.T) {
	q := NewCommandQueue(3)
	p1 := UpdateCell(Point{}, RGB{}, Turns(1))
	p1.ID = "p1"
	s1 := GameEffect("a", nil, Point{X: 1})
	s1.ID = "s1"
	s2 := GameEffect("b", nil, Point{X: 1})
	s2.ID = "s2"
	for _, c := range []Command{p1, s1, s2} {
		if res := q.Push(c); res.Dropped != nil || res.Overflow {
			t.Fatalf("push %s below capacity = %+v", c.ID, res)
		}
	}

	p2 := UpdateCell(Point{X: 2}, RGB{}, Turns(1))
	p2.ID = "p2"
	res := q.Push(p2)
	if res.Dropped == nil || res.Dropped.ID != "s1" {
		t.Fatalf("dropped = %+v, want s1", res.Dropped)
	}
	got := q.PopN(10)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	if want := []string{"p1", "s2", "p2"}; len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestCommandQueue_PrimariesNeverDropped(t *testing.T) {
	q := NewCommandQueue(2)
	for range 2 {
		q.Push(UpdateCell(Point{}, RGB{}, Turns(1)))
	}
	s := GameEffect("late", nil, Point{X: 1})
	if res := q.Push(s); res.Dropped == nil || res.Dropped.Name != "late" {
		t.Fatalf("incoming secondary not dropped: %+v", res)
	}
	if res := q.Push(UpdateCell(Point{X: 2}, RGB{}, Turns(1))); !res.Overflow || res.Dropped != nil {
		t.Fatalf("primary over capacity = %+v, want overflow", res)
	}
	if res := q.Push(Clear()); !res.Overflow {
		t.Fatalf("system over capacity = %+v, want overflow", res)
	}
	if q.Len() != 4 {
		t.Fatalf("len = %d, want 4", q.Len())
	}
}

func TestCommandQueue_PushFrontAndDropStale(t *testing.T) {
	q := NewCommandQueue(8)
	base := time.Unix(100, 0)
	old := Clear().stamp(base)
	fresh := Clear().stamp(base.Add(time.Second))
	q.Push(fresh)
	q.PushFront([]Command{old})

	if got := q.PopN(1); got[0].ID != old.ID {
		t.Fatal("PushFront did not put command at the head")
	}
	q.PushFront([]Command{old})
	stale := q.DropStale(base.Add(500 * time.Millisecond))
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Fatalf("stale = %v", stale)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
	if got := q.PopN(0); got != nil {
		t.Fatalf("PopN(0) = %v", got)
	}
}
