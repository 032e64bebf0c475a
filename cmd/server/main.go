package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Sketch/internal/adapters/http"
	wsignal "github.com/dkeye/Sketch/internal/adapters/signal"
	"github.com/dkeye/Sketch/internal/app"
	"github.com/dkeye/Sketch/internal/app/orch"
	"github.com/dkeye/Sketch/internal/auth"
	"github.com/dkeye/Sketch/internal/config"
	"github.com/dkeye/Sketch/internal/directory"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	dir, err := directory.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer dir.Close()
	if err := dir.WaitReady(ctx, 10, 2*time.Second); err != nil {
		log.Fatal().Err(err).Msg("database not reachable")
	}
	if err := dir.Schema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create tables")
	}

	verifier := auth.NewVerifier(cfg.Secret)

	orchestrator := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewGroupManager(),
		Games:    app.NewGameManager(),
		Policy:   app.SimplePolicy{},
		Dir:      dir,
	}
	ctl := wsignal.NewController(orchestrator, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, verifier, ctl, dir)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Sketch server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
