package rig

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"umbra/internal/metrics"
)

// 計測名
const (
	MetricSent        = "rig.commands.sent"
	MetricAcked       = "rig.commands.acked"
	MetricRetried     = "rig.commands.retried"
	MetricAbandoned   = "rig.commands.abandoned"
	MetricRejected    = "rig.commands.rejected"
	MetricShed        = "rig.commands.shed"
	MetricStale       = "rig.commands.stale"
	MetricOverflow    = "rig.queue.overflow"
	MetricRateLimited = "rig.flush.rate_limited"
	MetricProtocol    = "rig.frames.malformed"
	MetricReconnect   = "rig.connect.attempts"
	MetricAckLatency  = "rig.ack.latency"
)

const maxRetries = 1

// Config はブリッジの動作パラメータです。
type Config struct {
	FlushInterval     time.Duration
	HeartbeatInterval time.Duration
	RateLimit         int
	RateWindow        time.Duration
	QueueCapacity     int
	// StaleAfter より古い待機コマンドは再接続時に破棄されます。
	StaleAfter     time.Duration
	AckTimeout     time.Duration
	IdleTimeout    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	SafetyRGB      RGB
	Grid           Grid
}

func DefaultConfig() Config {
	return Config{
		FlushInterval:     33 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		RateLimit:         100,
		RateWindow:        time.Second,
		QueueCapacity:     256,
		StaleAfter:        33 * time.Millisecond,
		AckTimeout:        2 * time.Second,
		IdleTimeout:       15 * time.Second,
		BackoffInitial:    500 * time.Millisecond,
		BackoffMax:        30 * time.Second,
		SafetyRGB:         RGB{255, 255, 255},
		Grid:              GridFor(8, 8, true),
	}
}

type pending struct {
	cmd    Command
	sentAt time.Time
}

// Bridge はゲームからのコマンドを束ねてリグへ送り、接続を維持します。
// Enqueueは任意のgoroutineから呼べます。Runは1つのgoroutineで動かします。
type Bridge struct {
	cfg     Config
	dialer  Dialer
	queue   *CommandQueue
	window  *SlidingWindow
	metrics metrics.Recorder
	now     func() time.Time

	state atomic.Pointer[ConnState]

	mu        sync.Mutex
	onConnect []func(ctx context.Context)

	// Runのgoroutine(とその配下のownerLoop)だけが触る
	inflight map[string]pending
	sessions int
}

type BridgeOption func(*Bridge)

func WithMetrics(r metrics.Recorder) BridgeOption {
	return func(b *Bridge) { b.metrics = r }
}

func WithClock(now func() time.Time) BridgeOption {
	return func(b *Bridge) { b.now = now }
}

func NewBridge(dialer Dialer, cfg Config, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		dialer:   dialer,
		queue:    NewCommandQueue(cfg.QueueCapacity),
		window:   NewSlidingWindow(cfg.RateLimit, cfg.RateWindow),
		metrics:  metrics.Noop{},
		now:      time.Now,
		inflight: make(map[string]pending),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setState(ConnState{Phase: Disconnected})
	return b
}

func (b *Bridge) Grid() Grid { return b.cfg.Grid }

func (b *Bridge) State() ConnState { return *b.state.Load() }

func (b *Bridge) QueueLen() int { return b.queue.Len() }

// OnConnect は接続確立のたびに呼ばれる関数を登録します。
func (b *Bridge) OnConnect(fn func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onConnect = append(b.onConnect, fn)
}

// Enqueue はコマンドを送信キューに積みます。ブロックしません。
// 格子のパリティに反するコマンドはErrParityViolationで拒否されます。
func (b *Bridge) Enqueue(ctx context.Context, c Command) error {
	c = c.stamp(b.now())
	if err := b.cfg.Grid.CheckParity(c); err != nil {
		b.metrics.IncrementCounter(ctx, MetricRejected, 1)
		slog.WarnContext(ctx, "rig: command rejected", "id", c.ID, "type", c.Type, "err", err)
		return err
	}

	res := b.queue.Push(c)
	if res.Dropped != nil {
		b.metrics.IncrementCounter(ctx, MetricShed, 1)
		slog.DebugContext(ctx, "rig: shed secondary command", "id", res.Dropped.ID, "type", res.Dropped.Type)
	}
	if res.Overflow {
		b.metrics.IncrementCounter(ctx, MetricOverflow, 1)
		slog.WarnContext(ctx, "rig: queue over capacity, keeping command", "id", c.ID, "class", c.Class, "depth", b.queue.Len())
	}
	return nil
}

// Run はctxがキャンセルされるまで接続と再接続を繰り返します。
// 切断後は指数バックオフ(上限BackoffMax)で再接続し、接続に成功するとバックオフを戻します。
func (b *Bridge) Run(ctx context.Context) error {
	bo := newBackoff(b.cfg)
	attempt := 0
	for {
		if ctx.Err() != nil {
			b.setState(ConnState{Phase: Disconnected})
			return nil
		}

		b.setState(ConnState{Phase: Connecting, Attempt: attempt})
		b.metrics.IncrementCounter(ctx, MetricReconnect, 1)
		tr, err := b.dialer.Dial(ctx)
		if err == nil {
			bo.Reset()
			attempt = 0
			b.sessions++
			b.setState(ConnState{Phase: Connected})
			slog.InfoContext(ctx, "rig: connected", "session", b.sessions)

			err = b.runSession(ctx, tr, b.sessions > 1)
			if ctx.Err() != nil {
				b.setState(ConnState{Phase: Disconnected})
				return nil
			}
			slog.WarnContext(ctx, "rig: session ended", "err", err)
		} else {
			if ctx.Err() != nil {
				b.setState(ConnState{Phase: Disconnected})
				return nil
			}
			slog.WarnContext(ctx, "rig: dial failed", "attempt", attempt+1, "err", err)
		}

		attempt++
		wait := bo.NextBackOff()
		b.setState(ConnState{Phase: Backoff, Attempt: attempt, Until: b.now().Add(wait)})
		if !sleepCtx(ctx, wait) {
			b.setState(ConnState{Phase: Disconnected})
			return nil
		}
	}
}

func (b *Bridge) runSession(ctx context.Context, tr Transport, resumed bool) error {
	b.restore(ctx, resumed)

	link := NewLink(b.now)
	ctrlCh := make(chan sessionEvent, 64)
	beatCh := make(chan Command, 1)

	eg, sctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return b.ownerLoop(sctx, link, ctrlCh)
	})
	eg.Go(func() error {
		return b.readLoop(sctx, tr, link, ctrlCh)
	})
	eg.Go(func() error {
		return b.flushLoop(sctx, tr, link, ctrlCh, beatCh)
	})
	eg.Go(func() error {
		NewHeartbeatService(b.cfg.HeartbeatInterval, beatCh, b.now).Run(sctx)
		return nil
	})

	b.mu.Lock()
	hooks := slices.Clone(b.onConnect)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn(sctx)
	}

	err := eg.Wait()
	for len(ctrlCh) > 0 {
		b.handleSessionEvent(ctx, link, <-ctrlCh)
	}

	code, reason := CloseNormal, "shutdown"
	if err != nil {
		code, reason = CloseInternal, "link failure"
	}
	if cerr := tr.Close(code, reason); cerr != nil {
		slog.DebugContext(ctx, "rig: close transport", "err", cerr)
	}
	return err
}

// restore は接続直後に未確認コマンドをキューへ戻し、再接続時は古いコマンドを捨てて安全モードを先頭に積みます。
func (b *Bridge) restore(ctx context.Context, resumed bool) {
	if len(b.inflight) > 0 {
		back := make([]Command, 0, len(b.inflight))
		for _, p := range b.inflight {
			back = append(back, p.cmd)
		}
		slices.SortFunc(back, func(x, y Command) int { return x.Created.Compare(y.Created) })
		clear(b.inflight)
		b.queue.PushFront(back)
	}
	if !resumed {
		return
	}

	now := b.now()
	stale := b.queue.DropStale(now.Add(-b.cfg.StaleAfter))
	if len(stale) > 0 {
		primaries := 0
		for _, c := range stale {
			if c.Class == ClassPrimary {
				primaries++
			}
		}
		b.metrics.IncrementCounter(ctx, MetricStale, len(stale))
		slog.WarnContext(ctx, "rig: dropped stale commands after reconnect", "count", len(stale), "primaries", primaries)
	}
	b.queue.PushFront([]Command{LightPrimaries(b.cfg.SafetyRGB).stamp(now)})
}

// ownerLoop は送信中コマンドの表を更新する唯一のループです。
func (b *Bridge) ownerLoop(ctx context.Context, link *Link, ctrlCh <-chan sessionEvent) error {
	tick := min(time.Second, max(b.cfg.AckTimeout/2, 10*time.Millisecond))
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ctrlCh:
			b.handleSessionEvent(ctx, link, ev)
		case <-ticker.C:
			b.expireInflight(ctx)
			if idle, reason := link.IsIdle(b.cfg.IdleTimeout); idle && reason.Has(IdleRead) {
				return fmt.Errorf("%w: link idle (%s)", ErrConnection, reason)
			}
		}
	}
}

func (b *Bridge) handleSessionEvent(ctx context.Context, link *Link, ev sessionEvent) {
	switch ev.kind {
	case evSent:
		now := b.now()
		for _, c := range ev.cmds {
			b.inflight[c.ID] = pending{cmd: c, sentAt: now}
		}
	case evResponse:
		p, ok := b.inflight[ev.resp.CommandID]
		if !ok {
			slog.DebugContext(ctx, "rig: response for unknown command", "id", ev.resp.CommandID)
			return
		}
		delete(b.inflight, ev.resp.CommandID)
		link.TouchAck()
		b.metrics.RecordLatency(ctx, MetricAckLatency, b.now().Sub(p.sentAt))
		if ev.resp.Failed() {
			b.retry(ctx, p.cmd, fmt.Sprintf("%s: %s", ev.resp.Code, ev.resp.Msg))
			return
		}
		b.metrics.IncrementCounter(ctx, MetricAcked, 1)
	default:
		slog.WarnContext(ctx, "rig: unknown session event", "kind", ev.kind)
	}
}

func (b *Bridge) expireInflight(ctx context.Context) {
	deadline := b.now().Add(-b.cfg.AckTimeout)
	var expired []pending
	for id, p := range b.inflight {
		if p.sentAt.Before(deadline) {
			expired = append(expired, p)
			delete(b.inflight, id)
		}
	}
	slices.SortFunc(expired, func(x, y pending) int { return y.cmd.Created.Compare(x.cmd.Created) })
	for _, p := range expired {
		b.retry(ctx, p.cmd, "ack timeout")
	}
}

// retry は失敗したコマンドを1度だけ先頭に戻し、2度目の失敗で諦めます。
func (b *Bridge) retry(ctx context.Context, c Command, why string) {
	if c.attempts < maxRetries {
		c.attempts++
		b.queue.PushFront([]Command{c})
		b.metrics.IncrementCounter(ctx, MetricRetried, 1)
		slog.WarnContext(ctx, "rig: command failed, retrying", "id", c.ID, "type", c.Type, "reason", why)
		return
	}
	b.metrics.IncrementCounter(ctx, MetricAbandoned, 1)
	slog.ErrorContext(ctx, "rig: command abandoned", "id", c.ID, "type", c.Type, "class", c.Class, "reason", why)
}

func (b *Bridge) readLoop(ctx context.Context, tr Transport, link *Link, ctrlCh chan<- sessionEvent) error {
	for {
		data, err := tr.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: read: %v", ErrConnection, err)
		}
		link.TouchRead()

		resp, err := ParseResponse(data)
		if err != nil {
			b.metrics.IncrementCounter(ctx, MetricProtocol, 1)
			slog.WarnContext(ctx, "rig: malformed frame", "err", err)
			continue
		}
		select {
		case ctrlCh <- sessionEvent{kind: evResponse, resp: resp}:
		case <-ctx.Done():
			return nil
		}
	}
}

// flushLoop はFlushInterval毎に待機コマンドを1つのbatchにまとめて送ります。
// 直近RateWindowの送信数がRateLimitを超えないよう、送れる分だけ取り出します。
func (b *Bridge) flushLoop(ctx context.Context, tr Transport, link *Link, ctrlCh chan<- sessionEvent, beatCh <-chan Command) error {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	var beats []Command
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-beatCh:
			beats = append(beats, c)
		case <-ticker.C:
			rest, err := b.flush(ctx, tr, link, ctrlCh, beats)
			if err != nil {
				return err
			}
			beats = rest
		}
	}
}

func (b *Bridge) flush(ctx context.Context, tr Transport, link *Link, ctrlCh chan<- sessionEvent, beats []Command) ([]Command, error) {
	now := b.now()
	avail := b.window.Available(now)
	if avail == 0 {
		if len(beats) > 0 || b.queue.Len() > 0 {
			b.metrics.IncrementCounter(ctx, MetricRateLimited, 1)
		}
		return beats, nil
	}

	take := min(avail, len(beats))
	cmds := slices.Clone(beats[:take])
	beats = beats[take:]
	cmds = append(cmds, b.queue.PopN(avail-len(cmds))...)
	if len(cmds) == 0 {
		return beats, nil
	}

	frame, sent, rejected, err := encodeBatch(uuid.NewString(), now, b.cfg.Grid, cmds)
	for _, c := range rejected {
		b.metrics.IncrementCounter(ctx, MetricRejected, 1)
		slog.ErrorContext(ctx, "rig: command could not be encoded", "id", c.ID, "type", c.Type)
	}
	if err != nil {
		b.queue.PushFront(cmds)
		return beats, fmt.Errorf("%w: encode batch: %v", ErrProtocol, err)
	}
	if len(sent) == 0 {
		return beats, nil
	}

	select {
	case ctrlCh <- sessionEvent{kind: evSent, cmds: sent}:
	case <-ctx.Done():
		b.queue.PushFront(sent)
		return beats, nil
	}
	b.window.Record(now, len(sent))
	if err := tr.Write(ctx, frame); err != nil {
		if ctx.Err() != nil {
			return beats, nil
		}
		return beats, fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	link.TouchWrite()
	b.metrics.IncrementCounter(ctx, MetricSent, len(sent))
	return beats, nil
}

func (b *Bridge) setState(s ConnState) {
	b.state.Store(&s)
}

// newBackoff は倍々に伸びてBackoffMaxで頭打ちになる待ち時間を返します。
func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BackoffInitial
	bo.MaxInterval = cfg.BackoffMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
