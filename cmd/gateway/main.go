package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/config"
	"github.com/drawdeck/drawdeck/internal/gateway"
	"github.com/drawdeck/drawdeck/internal/setup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := setup.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build core")
	}
	defer core.Close()

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go manager.Start(ctx)

	broadcaster := gateway.NewBroadcaster(core.Sessions, manager)
	go func() {
		if err := broadcaster.Run(ctx); err != nil {
			log.Error().Err(err).Msg("broadcaster stopped")
			stop()
		}
	}()

	handler := gateway.NewHandler(manager, core.Sessions, core.Surface, core.Entrants, core.Prizes, core.Winners)
	server := gateway.NewServer(handler, cfg.Gateway.Port)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
