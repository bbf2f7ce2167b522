// The viewer renders the public display from session snapshots. It is a pure
// consumer and never writes to the shared store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/config"
	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/setup"
	"github.com/drawdeck/drawdeck/internal/viewer"
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

	var marker viewer.Marker
	if cfg.Viewer.MarkerPath != "" {
		marker = viewer.NewFileMarker(cfg.Viewer.MarkerPath)
	}

	v := viewer.NewViewer(core.Sessions, core.Nudge, &termRenderer{}, marker, viewer.Config{
		FrameInterval: cfg.FrameInterval(),
	})
	if err := v.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("viewer stopped")
	}
}

// termRenderer is a minimal terminal rendering of the display screen.
type termRenderer struct{}

var spinGlyphs = []string{"|", "/", "-", "\\"}

func (t *termRenderer) RenderIdle(state models.SessionState) {
	fmt.Println("\n=== drawdeck ===")
	if state.SelectedPrizeID != nil {
		fmt.Printf("prize selected, quota %d. Waiting to start.\n", state.QuotaForThisDraw)
		return
	}
	fmt.Println("waiting for the next draw")
}

func (t *termRenderer) RenderGenerated(state models.SessionState) {
	fmt.Printf("\n%d winners locked in. Ready to spin!\n", len(state.PredeterminedWinners))
}

func (t *termRenderer) RenderSpinFrame(state models.SessionState, frame int) {
	fmt.Printf("\r%s spinning %s", spinGlyphs[frame%len(spinGlyphs)], spinGlyphs[frame%len(spinGlyphs)])
}

func (t *termRenderer) RenderSlowdown(state models.SessionState) {
	fmt.Println("\nslowing down...")
}

func (t *termRenderer) RenderResults(state models.SessionState) {
	fmt.Println("\n*** WINNERS ***")
	names := make([]string, 0, len(state.CommittedWinners))
	for _, w := range state.CommittedWinners {
		names = append(names, w.EntrantName)
	}
	fmt.Println(strings.Join(names, ", "))
	if state.ShowConfetti {
		fmt.Println("🎉 🎉 🎉")
	}
}
