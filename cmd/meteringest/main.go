package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/akave-ai/meteringest/internal/app"
	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/logger"
	"github.com/akave-ai/meteringest/internal/server"
)

func main() {
	cfg := config.LoadApp()
	log := logger.New(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	srv := server.New(cfg, a.Service, a.Recorder, a.Pool, log)
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		a.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
