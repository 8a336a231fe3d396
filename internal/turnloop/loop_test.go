package turnloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_DoReturnsJobResult(t *testing.T) {
	l := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}

	want := errors.New("rejected")
	if err := l.Do(ctx, func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
	if err := l.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestLoop_SerializesJobs(t *testing.T) {
	l := New(Config{QueueSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = l.Start(ctx)

	var running, overlap atomic.Int32
	done := make(chan struct{}, 50)
	for range 50 {
		go func() {
			_ = l.Do(ctx, func(context.Context) error {
				if running.Add(1) > 1 {
					overlap.Add(1)
				}
				time.Sleep(100 * time.Microsecond)
				running.Add(-1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for range 50 {
		<-done
	}
	if overlap.Load() != 0 {
		t.Fatalf("%d jobs overlapped", overlap.Load())
	}
}

func TestLoop_TickRunsOnLoop(t *testing.T) {
	ticks := make(chan struct{}, 4)
	l := New(Config{Tick: 5 * time.Millisecond, OnTick: func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = l.Start(ctx)

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("OnTick never ran")
	}
}

func TestLoop_Lifecycle(t *testing.T) {
	l := New(Config{})
	if err := l.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("got %v, want ErrNotStarted", err)
	}
	_ = l.Start(context.Background())
	if err := l.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
	if err := l.DrainTimeout(time.Second); err != nil {
		t.Fatalf("DrainTimeout: %v", err)
	}
	if err := l.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
}

func TestLoop_StopDuringConcurrentSubmit(t *testing.T) {
	l := New(Config{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = l.Start(ctx)

	var wg sync.WaitGroup
	var accepted, refused atomic.Int32
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := l.Submit(ctx, func(context.Context) error { return nil })
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrStopped):
					refused.Add(1)
					return
				default:
					t.Errorf("Submit: %v", err)
					return
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	if err := l.DrainTimeout(time.Second); err != nil {
		t.Fatalf("DrainTimeout: %v", err)
	}
	wg.Wait()

	if accepted.Load() == 0 {
		t.Error("no job was accepted before Stop")
	}
	if err := l.Do(ctx, func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
}
