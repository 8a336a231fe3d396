// Package turnloop はゲーム状態を触る処理を単一のgoroutineに直列化します。
package turnloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNotStarted = errors.New("turnloop: not started")
	ErrStopped    = errors.New("turnloop: stopped")
)

// Job はループ上で実行される処理です。
type Job func(ctx context.Context) error

// Config controls the behaviour of the single thread loop.
type Config struct {
	QueueSize int
	// Tick が正のとき、OnTickをその間隔でループ上から呼びます。
	Tick   time.Duration
	OnTick func(ctx context.Context)
}

type request struct {
	job  Job
	done chan error
}

// Loop delivers submitted jobs to a single goroutine.
type Loop struct {
	queue  chan request
	tick   time.Duration
	onTick func(ctx context.Context)

	started  atomic.Bool
	stopping atomic.Bool
	// mu はqueueへの送信とcloseを排他します。送信側はRLockを持ったまま送ります。
	mu     sync.RWMutex
	closed bool
	stopCh chan struct{}

	done chan struct{}
}

func New(cfg Config) *Loop {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		queue:  make(chan request, queueSize),
		tick:   cfg.Tick,
		onTick: cfg.OnTick,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the loop. It must be called once.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("turnloop: start called multiple times")
	}
	go l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	var tickC <-chan time.Time
	if l.tick > 0 && l.onTick != nil {
		ticker := time.NewTicker(l.tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "turnloop: context cancelled, shutting down", "err", ctx.Err())
			return
		case <-tickC:
			l.onTick(ctx)
		case req, ok := <-l.queue:
			if !ok {
				slog.InfoContext(ctx, "turnloop: queue closed, exiting")
				return
			}
			err := req.job(ctx)
			if err != nil && req.done == nil {
				slog.WarnContext(ctx, "turnloop: job error", "err", err)
			}
			if req.done != nil {
				req.done <- err
			}
		}
	}
}

// Submit はjobを積んで即座に戻ります。jobのエラーはログに出るだけです。
func (l *Loop) Submit(ctx context.Context, job Job) error {
	return l.enqueue(ctx, request{job: job})
}

// Do はjobをループ上で実行し、その結果を待ちます。
func (l *Loop) Do(ctx context.Context, job Job) error {
	req := request{job: job, done: make(chan error, 1)}
	if err := l.enqueue(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-req.done:
			return err
		default:
			return ErrStopped
		}
	}
}

func (l *Loop) enqueue(ctx context.Context, req request) error {
	if !l.started.Load() {
		return ErrNotStarted
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return ErrStopped
	case l.queue <- req:
		return nil
	}
}

// Stop drains the loop and waits for graceful completion.
func (l *Loop) Stop(ctx context.Context) error {
	if !l.stopping.CompareAndSwap(false, true) {
		return errors.New("turnloop: stop called multiple times")
	}
	// 満杯のqueueで待っている送信側を先に解放してからcloseする
	close(l.stopCh)
	l.mu.Lock()
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainTimeout closes the queue and waits for completion with the given timeout.
func (l *Loop) DrainTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Stop(ctx)
}
