package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"umbra/canon"
	"umbra/game"
	"umbra/internal/metrics"
	"umbra/internal/turnloop"
	"umbra/service/mocks"
	"umbra/storage"
	"umbra/storage/memory"
)

type fakeClock struct {
	now   time.Time
	since time.Duration
}

func (f *fakeClock) Now() time.Time                { return f.now }
func (f *fakeClock) Since(time.Time) time.Duration { return f.since }

// inlineExecutor はjobをその場で実行します。
type inlineExecutor struct{ calls int }

func (x *inlineExecutor) Do(ctx context.Context, job turnloop.Job) error {
	x.calls++
	return job(ctx)
}

func at(x, y int) *game.Pos { return &game.Pos{X: x, Y: y} }

func newEngine(t *testing.T) *game.Engine {
	t.Helper()
	e, err := game.NewEngine(canon.Default(), game.Setup{
		Width: 5, Height: 5,
		Players: []game.PlayerID{"a", "b"},
		Aidron:  game.Pos{X: 4, Y: 0},
		Exit:    game.Pos{X: 4, Y: 4},
	}, game.WithSeed(3))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func newService(t *testing.T, loop Executor) (*GameService, *metrics.Counters) {
	t.Helper()
	m := metrics.NewCounters()
	svc, err := NewGameService(newEngine(t), loop, m, &fakeClock{now: time.Unix(100, 0), since: 5 * time.Millisecond}, SimpleValidator{})
	if err != nil {
		t.Fatalf("NewGameService: %v", err)
	}
	return svc, m
}

func placeAll(t *testing.T, svc *GameService) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Place(ctx, Intent{Player: "a", Target: at(0, 2)}); err != nil {
		t.Fatalf("place a: %v", err)
	}
	if _, err := svc.Place(ctx, Intent{Player: "b", Target: at(0, 4)}); err != nil {
		t.Fatalf("place b: %v", err)
	}
}

func TestNewGameService_RequiresDependencies(t *testing.T) {
	if _, err := NewGameService(nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error when dependencies are nil")
	}
}

func TestGameService_PlaceStartsSearch(t *testing.T) {
	loop := &inlineExecutor{}
	svc, m := newService(t, loop)
	placeAll(t, svc)

	view, err := svc.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.State.Phase != game.PhaseSearch {
		t.Fatalf("got phase %v, want SEARCH", view.State.Phase)
	}
	if view.Current != "a" {
		t.Fatalf("got current %q, want a", view.Current)
	}
	if loop.calls != 3 {
		t.Fatalf("got %d loop calls, want 3", loop.calls)
	}
	if got := m.Get("requests.place"); got != 2 {
		t.Fatalf("got requests.place=%d, want 2", got)
	}
}

func TestGameService_MoveAndEndTurn(t *testing.T) {
	svc, _ := newService(t, &inlineExecutor{})
	placeAll(t, svc)
	ctx := context.Background()

	view, err := svc.Move(ctx, Intent{Player: "a", Target: at(1, 2)})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if p, _ := view.State.Player("a"); p.Pos != (game.Pos{X: 1, Y: 2}) {
		t.Fatalf("got pos %v, want (1,2)", p.Pos)
	}
	view, err = svc.EndTurn(ctx, Intent{Player: "a"})
	if err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if view.Current != "b" {
		t.Fatalf("got current %q, want b", view.Current)
	}
}

func TestGameService_RejectionIsCountedByReason(t *testing.T) {
	svc, m := newService(t, &inlineExecutor{})
	placeAll(t, svc)

	_, err := svc.Move(context.Background(), Intent{Player: "b", Target: at(1, 4)})
	var rej *game.RejectError
	if !errors.As(err, &rej) || rej.Reason != game.ReasonNotYourTurn {
		t.Fatalf("got %v, want not_your_turn rejection", err)
	}
	if !errors.Is(err, game.ErrActionRejected) {
		t.Fatalf("got %v, want ErrActionRejected in chain", err)
	}
	if got := m.Get("rejections.not_your_turn"); got != 1 {
		t.Fatalf("got rejections.not_your_turn=%d, want 1", got)
	}
}

func TestGameService_InvalidPayloadSkipsLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	loop := mocks.NewMockExecutor(ctrl)
	loop.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)
	svc, m := newService(t, loop)

	tests := []struct {
		name string
		call func() error
	}{
		{"move without target", func() error {
			_, err := svc.Move(context.Background(), Intent{Player: "a"})
			return err
		}},
		{"signal with target", func() error {
			_, err := svc.Signal(context.Background(), Intent{Player: "a", Target: at(0, 0)})
			return err
		}},
		{"token without use", func() error {
			_, err := svc.UseToken(context.Background(), Intent{Player: "a"})
			return err
		}},
		{"unfile without subject", func() error {
			_, err := svc.UseToken(context.Background(), Intent{Player: "a", Token: canon.TokenUnfile})
			return err
		}},
		{"missing player", func() error {
			_, err := svc.EndTurn(context.Background(), Intent{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("got %v, want ErrInvalidPayload", err)
			}
		})
	}
	if got := m.Get("requests.move"); got != 1 {
		t.Fatalf("got requests.move=%d, want 1", got)
	}
}

func TestGameService_LoopErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	loop := mocks.NewMockExecutor(ctrl)
	loop.EXPECT().Do(gomock.Any(), gomock.Any()).Return(turnloop.ErrStopped)
	svc, _ := newService(t, loop)

	if _, err := svc.Illuminate(context.Background(), Intent{Player: "a", Target: at(0, 1)}); !errors.Is(err, turnloop.ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
}

func TestGameService_PersistsLatestSnapshot(t *testing.T) {
	store := memory.NewConcurrentStore(memory.NewStore())
	svc, _ := newService(t, &inlineExecutor{})
	svc.WithSnapshots(store, "s1")
	placeAll(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunPersister(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := store.Load(context.Background(), "s1")
		if err == nil && snap.State.Phase == game.PhaseSearch {
			break
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Load: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot was never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	list, err := svc.Sessions(context.Background())
	if err != nil || len(list) != 1 || list[0].SessionID != "s1" {
		t.Fatalf("got %+v (%v), want one session s1", list, err)
	}
}

func TestGameService_WithRealTurnLoop(t *testing.T) {
	loop := turnloop.New(turnloop.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := loop.Start(ctx); err != nil {
		t.Fatal(err)
	}
	svc, _ := newService(t, loop)
	placeAll(t, svc)

	if _, err := svc.Signal(ctx, Intent{Player: "a"}); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	view, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.State.Noise == 0 {
		t.Fatal("signal did not raise noise")
	}
}

func TestGameService_SpanJoinsRequestTrace(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	loop := turnloop.New(turnloop.Config{})
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := loop.Start(loopCtx); err != nil {
		t.Fatal(err)
	}
	svc, _ := newService(t, loop)
	svc.WithTracerProvider(tp)

	ctx, parent := tp.Tracer("http").Start(context.Background(), "POST /intents/place")
	if _, err := svc.Place(ctx, Intent{Player: "a", Target: at(0, 2)}); err != nil {
		t.Fatalf("Place: %v", err)
	}
	parent.End()

	var got sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == "service.place" {
			got = s
		}
	}
	if got == nil {
		t.Fatal("service.place span not recorded")
	}
	if got.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Fatalf("got parent %s, want %s", got.Parent().SpanID(), parent.SpanContext().SpanID())
	}
	if got.SpanContext().TraceID() != parent.SpanContext().TraceID() {
		t.Fatal("service span started a new trace")
	}
}
