// Package schedule は時刻指定のコールバックを保持し、tick毎のPollで実行します。
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/zyedidia/generic/heap"
)

// Clock は単調増加する時刻の供給源です。
type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

type SystemClock struct{}

func (SystemClock) Now() time.Time                  { return time.Now() }
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Handle は登録済みコールバックの識別子です。Cancelに渡して取り消します。
type Handle uint64

type task struct {
	handle Handle
	due    time.Time
	every  time.Duration
	seq    uint64
	fn     func(ctx context.Context)
}

// Scheduler は保留中のコールバックを期限順に並べます。
// コールバックはPollを呼んだgoroutineで実行されます。
type Scheduler struct {
	clock Clock

	mu       sync.Mutex
	pending  *heap.Heap[*task]
	live     map[Handle]*task
	nextID   Handle
	sequence uint64
}

func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Scheduler{clock: clock, live: make(map[Handle]*task)}
	s.pending = heap.New[*task](byDue)
	return s
}

func byDue(a, b *task) bool {
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

// After はd経過後に一度だけfnを実行します。
func (s *Scheduler) After(d time.Duration, fn func(ctx context.Context)) Handle {
	return s.add(d, 0, fn)
}

// Every はd毎にfnを実行します。Cancelされるまで続きます。
func (s *Scheduler) Every(d time.Duration, fn func(ctx context.Context)) Handle {
	return s.add(d, max(d, time.Millisecond), fn)
}

func (s *Scheduler) add(d, every time.Duration, fn func(ctx context.Context)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &task{handle: s.nextID, due: s.clock.Now().Add(d), every: every, fn: fn}
	s.push(t)
	s.live[t.handle] = t
	return t.handle
}

func (s *Scheduler) push(t *task) {
	s.sequence++
	t.seq = s.sequence
	s.pending.Push(t)
}

// Cancel は未実行のコールバックを取り消します。既に実行済みか不明なハンドルならfalseです。
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[h]; !ok {
		return false
	}
	delete(s.live, h)
	return true
}

// Poll は期限を過ぎたコールバックを期限順に実行し、実行した件数を返します。
func (s *Scheduler) Poll(ctx context.Context) int {
	now := s.clock.Now()
	ran := 0
	for {
		s.mu.Lock()
		t, ok := s.pending.Peek()
		if !ok || t.due.After(now) {
			s.mu.Unlock()
			return ran
		}
		s.pending.Pop()
		if s.live[t.handle] != t {
			s.mu.Unlock()
			continue
		}
		if t.every > 0 {
			t.due = t.due.Add(t.every)
			if !t.due.After(now) {
				t.due = now.Add(t.every)
			}
			s.push(t)
		} else {
			delete(s.live, t.handle)
		}
		s.mu.Unlock()

		t.fn(ctx)
		ran++
	}
}

// Len は保留中のコールバック数です。
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
