package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"umbra/canon"
	"umbra/effect"
	"umbra/game"
	"umbra/handler/intent"
	"umbra/internal/config"
	"umbra/internal/metrics"
	"umbra/internal/schedule"
	"umbra/internal/telemetry"
	"umbra/internal/turnloop"
	"umbra/rig"
	wsadapter "umbra/rig/adapter/websocket"
	"umbra/service"
	"umbra/storage"
	"umbra/storage/memory"
	"umbra/storage/sqlite"
)

func main() {
	cfg, err := config.LoadUmbra()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "umbra", cfg.Telemetry)
	if err != nil {
		config.Exitf("telemetry: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("telemetry shutdown failed", "err", err)
		}
	}()
	slog.SetDefault(slog.New(telemetry.LogHandler(logger.Handler(), "umbra", cfg.Telemetry)))

	// スキーマ違反はゲーム開始前に落とす
	c, err := canon.LoadVerified(cfg.CanonPath)
	if err != nil {
		config.Exitf("canon: %v", err)
	}
	registry := canon.NewRegistry(c)
	verifier := canon.NewVerifier()

	counters := metrics.NewCounters()
	recorder := metrics.Tee{metrics.NewOTel(otel.Meter("umbra")), counters}

	store, closeStore, err := openStore(cfg.DBPath)
	if err != nil {
		config.Exitf("storage: %v", err)
	}
	defer closeStore()

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	opts := []game.Option{game.WithVerifier(verifier)}
	if cfg.Game.Seed != 0 {
		opts = append(opts, game.WithSeed(cfg.Game.Seed))
	}
	engine, err := buildEngine(ctx, registry.Current(), cfg.Game, store, sessionID, opts)
	if err != nil {
		config.Exitf("game: %v", err)
	}

	clock := schedule.SystemClock{}
	sched := schedule.New(clock)
	loop := turnloop.New(turnloop.Config{
		Tick:   cfg.Tick,
		OnTick: func(ctx context.Context) { sched.Poll(ctx) },
	})

	var bridge *rig.Bridge
	if cfg.Rig.URL != "" {
		grid := rig.GridFor(cfg.Game.Width, cfg.Game.Height, cfg.Rig.Serpentine)
		bridge = rig.NewBridge(wsadapter.Dialer{URL: cfg.Rig.URL}, bridgeConfig(cfg.Rig, grid), rig.WithMetrics(recorder))
		dispatcher := effect.New(bridge, grid, sched, effect.DefaultOptions())
		engine.Subscribe(dispatcher)
		// 接続のたびに盤面を描き直す。古いコマンドは再接続時に捨てられているため。
		bridge.OnConnect(func(ctx context.Context) {
			err := loop.Submit(ctx, func(ctx context.Context) error {
				dispatcher.Resync(ctx, engine.View())
				return nil
			})
			if err != nil {
				slog.WarnContext(ctx, "resync not scheduled", "err", err)
			}
		})
	} else {
		slog.InfoContext(ctx, "UMBRA_RIG_URL is empty, running without the LED rig")
	}

	if err := store.Save(ctx, sessionID, engine.Snapshot()); err != nil {
		slog.WarnContext(ctx, "initial snapshot save failed", "session", sessionID, "err", err)
	}

	if err := loop.Start(ctx); err != nil {
		config.Exitf("turnloop: %v", err)
	}

	svc, err := service.NewGameService(engine, loop, recorder, clock, service.SimpleValidator{})
	if err != nil {
		config.Exitf("service: %v", err)
	}
	svc.WithSnapshots(store, sessionID)

	mux := http.NewServeMux()
	intent.NewHandler(svc).Routes(mux)
	mux.HandleFunc("GET /health", intent.NewHealthHandler(func() any {
		status := map[string]any{
			"session": sessionID,
			"canon":   registry.Current().Version,
			"drifts":  len(verifier.Drifts()),
			"metrics": counters.Snapshot(),
		}
		if bridge != nil {
			status["rig"] = bridge.State().String()
			status["queue"] = bridge.QueueLen()
		}
		return status
	}))
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: otelhttp.NewHandler(mux, "umbra")}

	g, gctx := errgroup.WithContext(ctx)
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	g.Go(func() error {
		svc.RunPersister(gctx)
		return nil
	})
	g.Go(func() error {
		verifier.RunPeriodic(gctx, cfg.VerifyInterval, func(ctx context.Context) {
			err := loop.Do(ctx, func(ctx context.Context) error {
				engine.Audit(ctx)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				slog.WarnContext(ctx, "verifier check skipped", "err", err)
			}
		})
		return nil
	})
	g.Go(func() error {
		watchReload(gctx, registry, cfg.CanonPath, engine.Canon().Version)
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	slog.InfoContext(ctx, "umbra listening", "addr", cfg.HTTPAddr, "session", sessionID, "canon", c.Version)

	<-gctx.Done()
	slog.InfoContext(ctx, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "graceful shutdown failed", "err", err)
		if err := server.Close(); err != nil {
			slog.ErrorContext(ctx, "forced close failed", "err", err)
		}
	}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "component failed", "err", err)
	}
	if err := loop.DrainTimeout(5 * time.Second); err != nil {
		slog.ErrorContext(ctx, "turnloop drain failed", "err", err)
	}
	slog.InfoContext(ctx, "umbra shutdown complete")
}

func openStore(path string) (storage.SnapshotStore, func(), error) {
	if path == "" {
		return memory.NewConcurrentStore(memory.NewStore()), func() {}, nil
	}
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			slog.Error("close sqlite store", "err", err)
		}
	}, nil
}

// buildEngine は保存済みのセッションがあれば復元し、なければ新しいゲームを作ります。
func buildEngine(ctx context.Context, c *canon.Canon, g config.Game, store storage.SnapshotStore, sessionID string, opts []game.Option) (*game.Engine, error) {
	snap, err := store.Load(ctx, sessionID)
	switch {
	case err == nil:
		if snap.CanonVersion != c.Version {
			slog.WarnContext(ctx, "restoring session under a different canon", "session", sessionID, "saved", snap.CanonVersion, "current", c.Version)
		}
		slog.InfoContext(ctx, "session restored", "session", sessionID, "phase", snap.State.Phase, "round", snap.State.Round)
		return game.Restore(c, snap, opts...)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	setup := game.Setup{
		Width:  g.Width,
		Height: g.Height,
		Aidron: pos(g.Aidron),
		Exit:   pos(g.Exit),
	}
	for _, id := range g.Players {
		setup.Players = append(setup.Players, game.PlayerID(id))
	}
	for _, p := range g.MemorySparks {
		setup.MemorySparks = append(setup.MemorySparks, pos(p))
	}
	for _, p := range g.Filers {
		setup.Filers = append(setup.Filers, pos(p))
	}
	return game.NewEngine(c, setup, opts...)
}

func pos(c config.Cell) game.Pos {
	return game.Pos{X: c.X, Y: c.Y}
}

func bridgeConfig(r config.Rig, grid rig.Grid) rig.Config {
	cfg := rig.DefaultConfig()
	cfg.FlushInterval = r.FlushInterval
	cfg.StaleAfter = r.FlushInterval
	cfg.HeartbeatInterval = r.HeartbeatInterval
	cfg.RateLimit = r.RateLimit
	cfg.QueueCapacity = r.QueueCapacity
	cfg.AckTimeout = r.AckTimeout
	cfg.BackoffMax = r.BackoffMax
	cfg.Grid = grid
	return cfg
}

// watchReload はSIGHUPでcanonを読み直します。進行中のゲームは開始時のcanonのまま続きます。
func watchReload(ctx context.Context, registry *canon.Registry, path, running string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			c, err := registry.Reload(ctx, path)
			if err != nil {
				continue
			}
			if c.Version != running {
				slog.InfoContext(ctx, "canon reloaded, applies to the next game", "running", running, "loaded", c.Version)
			}
		}
	}
}
