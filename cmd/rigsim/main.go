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

	"umbra/internal/config"
	"umbra/rig"
	"umbra/rigsim"
)

func main() {
	cfg, err := config.LoadRigSim()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := rigsim.New(rig.GridFor(cfg.Width, cfg.Height, cfg.Serpentine))
	if cfg.FailFirst > 0 {
		sim.FailNext(cfg.FailFirst)
	}
	s := rigsim.NewServer(cfg.Addr, rigsim.Route(sim))

	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Exitf("rigsim: %v", err)
		}
	}()
	slog.InfoContext(ctx, "rig simulator listening", "addr", s.Addr(), "width", cfg.Width, "height", cfg.Height)

	<-ctx.Done()
	slog.InfoContext(ctx, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "graceful shutdown failed", "err", err)
		if err := s.Close(); err != nil {
			slog.ErrorContext(ctx, "forced close failed", "err", err)
		}
	}
	st := sim.Stats()
	slog.InfoContext(ctx, "rig simulator stopped", "connections", st.Connections, "applied", st.Applied, "rejected", st.Rejected)
}
