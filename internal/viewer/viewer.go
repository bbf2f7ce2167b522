// Package viewer is the public display surface. It is a pure consumer: it
// renders from session snapshots and its own animation timer, and issues no
// writes to the shared store.
package viewer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/signal"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// SessionSource is the read side of the session document.
type SessionSource interface {
	Subscribe(ctx context.Context) (<-chan models.SessionState, error)
	Current(ctx context.Context) (models.SessionState, error)
}

// Renderer receives display callbacks. The viewer never surfaces errors to
// it; absent or malformed session data renders the idle state.
type Renderer interface {
	RenderIdle(state models.SessionState)
	RenderGenerated(state models.SessionState)
	RenderSpinFrame(state models.SessionState, frame int)
	RenderSlowdown(state models.SessionState)
	RenderResults(state models.SessionState)
}

// Config holds viewer tuning knobs.
type Config struct {
	// FrameInterval is the spin animation tick rate.
	FrameInterval time.Duration
}

func DefaultConfig() Config {
	return Config{FrameInterval: 80 * time.Millisecond}
}

// Viewer drives the display from session snapshots. The spin ticker is scoped
// to the Spinning phase: started on entry, stopped on any phase change, never
// left running across a reset.
type Viewer struct {
	sessions SessionSource
	nudge    *signal.Channel
	renderer Renderer
	marker   Marker
	clock    Clock
	config   Config
}

func NewViewer(sessions SessionSource, nudge *signal.Channel, renderer Renderer, marker Marker, cfg Config) *Viewer {
	if marker == nil {
		marker = NewMemoryMarker()
	}
	return &Viewer{
		sessions: sessions,
		nudge:    nudge,
		renderer: renderer,
		marker:   marker,
		clock:    clockwork.NewRealClock(),
		config:   cfg,
	}
}

// WithClock replaces the viewer clock, for tests.
func (v *Viewer) WithClock(clock Clock) *Viewer {
	v.clock = clock
	return v
}

// Run consumes session updates until ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	updates, err := v.sessions.Subscribe(ctx)
	if err != nil {
		return err
	}
	nudges, err := v.nudge.Subscribe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("nudge channel unavailable, relying on store subscription only")
		nudges = nil
	}

	var (
		lastPhase  = session.Phase("")
		frame      int
		ticker     clockwork.Ticker
		tickerCh   <-chan time.Time
		spinState  models.SessionState
		stopTicker = func() {
			if ticker != nil {
				ticker.Stop()
				ticker = nil
				tickerCh = nil
				frame = 0
			}
		}
	)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return nil

		case state, ok := <-updates:
			if !ok {
				return nil
			}
			phase := session.DerivePhase(state)
			if phase != lastPhase {
				stopTicker()
				if phase == session.PhaseSpinning {
					ticker = v.clock.NewTicker(v.config.FrameInterval)
					tickerCh = ticker.Chan()
				}
				lastPhase = phase
			}
			spinState = state
			v.render(phase, state)

		case <-tickerCh:
			frame++
			v.renderer.RenderSpinFrame(spinState, frame)

		case <-nudges:
			// Advisory only: refresh from the source of truth. The side
			// channel being stale or absent changes nothing here.
			state, err := v.sessions.Current(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("nudge refresh failed")
				continue
			}
			phase := session.DerivePhase(state)
			if phase != lastPhase {
				stopTicker()
				if phase == session.PhaseSpinning {
					ticker = v.clock.NewTicker(v.config.FrameInterval)
					tickerCh = ticker.Chan()
				}
				lastPhase = phase
			}
			spinState = state
			v.render(phase, state)
		}
	}
}

func (v *Viewer) render(phase session.Phase, state models.SessionState) {
	switch phase {
	case session.PhaseGenerated:
		v.renderer.RenderGenerated(state)
	case session.PhaseSpinning:
		v.renderer.RenderSpinFrame(state, 0)
	case session.PhaseStopping:
		v.renderer.RenderSlowdown(state)
	default:
		if session.IsDisplayingResults(state) {
			// Remember completion durably so a reconnect mid-display shows
			// the final results without replaying the reveal effects.
			if v.marker.IsCompleted(state.OwnerSessionID) {
				state.ShowConfetti = false
			} else {
				v.marker.MarkCompleted(state.OwnerSessionID)
			}
			v.renderer.RenderResults(state)
			return
		}
		v.renderer.RenderIdle(state)
	}
}
