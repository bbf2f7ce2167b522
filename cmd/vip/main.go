// The VIP controller is a single-button surface: each press advances the
// drawing session to its next valid step, whatever that currently is.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/config"
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

	fmt.Println("drawdeck VIP button. Press Enter to advance, Ctrl-C to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := core.Surface.Advance(ctx); err != nil {
			fmt.Println("not now:", err)
		}
		_, phase, err := core.Surface.Phase(ctx)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println("phase:", phase)
	}
}
