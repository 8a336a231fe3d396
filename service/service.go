package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"umbra/game"
	"umbra/internal/metrics"
	"umbra/internal/turnloop"
	"umbra/storage"
)

//go:generate go tool mockgen -destination=./mocks/service_mock.go -package=mocks . Executor

var (
	ErrInvalidPayload = errors.New("service: invalid payload")
)

const tracerName = "umbra/service"

// Executor はゲーム状態を触る処理を直列化する実行器です。*turnloop.Loop が満たします。
type Executor interface {
	Do(ctx context.Context, job turnloop.Job) error
}

// GameService は行動要求を検証し、ターンループ上でEngineに適用します。
type GameService struct {
	engine   *game.Engine
	loop     Executor
	metrics  metrics.Recorder
	clock    Clock
	validate Validator
	tracer   trace.Tracer

	session string
	store   storage.SnapshotStore
	saves   chan game.Snapshot
}

func NewGameService(e *game.Engine, loop Executor, m metrics.Recorder, clock Clock, validator Validator) (*GameService, error) {
	if e == nil || loop == nil || m == nil || clock == nil || validator == nil {
		return nil, fmt.Errorf("service: missing dependencies: engine=%v loop=%v metrics=%v clock=%v validator=%v", e, loop, m, clock, validator)
	}
	return &GameService{
		engine:   e,
		loop:     loop,
		metrics:  m,
		clock:    clock,
		validate: validator,
		tracer:   otel.Tracer(tracerName),
		saves:    make(chan game.Snapshot, 1),
	}, nil
}

// WithSnapshots は行動が適用されるたびにスナップショットをstoreへ保存させます。
// 保存自体は RunPersister が別goroutineで行います。
func (s *GameService) WithSnapshots(store storage.SnapshotStore, sessionID string) *GameService {
	s.store = store
	s.session = sessionID
	return s
}

// WithTracerProvider はグローバル以外のTracerProviderでspanを張らせます。
func (s *GameService) WithTracerProvider(tp trace.TracerProvider) *GameService {
	s.tracer = tp.Tracer(tracerName)
	return s
}

func (s *GameService) Place(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "place", game.ActionPlace, in)
}

func (s *GameService) Move(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "move", game.ActionMove, in)
}

func (s *GameService) Illuminate(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "illuminate", game.ActionIlluminate, in)
}

func (s *GameService) Signal(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "signal", game.ActionSignal, in)
}

func (s *GameService) UseToken(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "token", game.ActionUseToken, in)
}

func (s *GameService) EndTurn(ctx context.Context, in Intent) (View, error) {
	return s.apply(ctx, "end_turn", game.ActionEndTurn, in)
}

// State は現在の状態を返します。
func (s *GameService) State(ctx context.Context) (View, error) {
	start := s.clock.Now()
	defer s.record("state", start)

	// spanはリクエスト側のctxから張り、ループ上の処理をその子にする
	ctx, span := s.tracer.Start(ctx, "service."+endpoint, trace.WithAttributes(
		attribute.String("player", string(in.Player)),
		attribute.String("request_id", in.Meta.RequestID),
	))
	defer span.End()

	var view View
	err := s.loop.Do(ctx, func(loopCtx context.Context) error {
		loopCtx = trace.ContextWithSpan(loopCtx, span)
		if err := s.engine.ValidateAndApply(loopCtx, in.Player, in.action(kind)); err != nil {
			return err
		}
		view = s.view()
		s.queueSave(loopCtx)
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var rej *game.RejectError
		if errors.As(err, &rej) {
			s.metrics.IncrementCounter(ctx, "rejections."+string(rej.Reason), 1)
		}
		return View{}, err
	}
	return view, nil
}

// view はループ上から呼びます。
func (s *GameService) view() View {
	cur, _ := s.engine.CurrentPlayer()
	return View{
		Session:  s.session,
		State:    s.engine.View(),
		Collapse: s.engine.CollapseState(),
		Mode:     s.engine.Mode(),
		Current:  cur,
	}
}

// queueSave は最新のスナップショットだけを保存待ちにします。ループ上から呼ぶこと。
func (s *GameService) queueSave(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap := s.engine.Snapshot()
	select {
	case s.saves <- snap:
		return
	default:
	}
	select {
	case <-s.saves:
		slog.DebugContext(ctx, "superseded pending snapshot", "session", s.session)
	default:
	}
	s.saves <- snap
}

// RunPersister はctxが終わるまで保存待ちのスナップショットを書き出します。
func (s *GameService) RunPersister(ctx context.Context) {
	if s.store == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			select {
			case snap := <-s.saves:
				s.save(context.WithoutCancel(ctx), snap)
			default:
			}
			return
		case snap := <-s.saves:
			s.save(ctx, snap)
		}
	}
}

func (s *GameService) save(ctx context.Context, snap game.Snapshot) {
	start := s.clock.Now()
	if err := s.store.Save(ctx, s.session, snap); err != nil {
		slog.ErrorContext(ctx, "snapshot save failed", "session", s.session, "err", err)
		s.metrics.IncrementCounter(ctx, "snapshots.failed", 1)
		return
	}
	s.metrics.RecordLatency(ctx, "snapshots.save", s.clock.Since(start))
	slog.DebugContext(ctx, "snapshot saved", "session", s.session, "round", snap.State.Round, "phase", snap.State.Phase)
}

func (s *GameService) record(endpoint string, started time.Time) {
	duration := s.clock.Since(started)
	ctx := context.Background()
	s.metrics.RecordLatency(ctx, endpoint, duration)
	s.metrics.IncrementCounter(ctx, "requests."+endpoint, 1)
}

type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

type Validator interface {
	Intent(game.ActionKind, Intent) error
}
