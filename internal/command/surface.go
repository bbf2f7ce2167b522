// Package command is the controller-facing surface of the drawing session.
// Every operation is a phase-guarded partial update to the shared session
// document; invalid commands are rejected locally before any store write.
package command

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/draw"
	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/signal"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// ValidationError is returned when a command is invalid for the current
// phase. It never reaches the store.
type ValidationError struct {
	Cmd    session.Command
	Phase  session.Phase
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s rejected in phase %s: %s", e.Cmd, e.Phase, e.Reason)
	}
	return fmt.Sprintf("%s rejected in phase %s", e.Cmd, e.Phase)
}

// SessionStore defines what the surface needs from the session document.
type SessionStore interface {
	Current(ctx context.Context) (models.SessionState, error)
	UpdateSession(ctx context.Context, fields map[string]any) error
	ResetSession(ctx context.Context) error
}

// EntrantsLister supplies the candidate pool for a draw.
type EntrantsLister interface {
	List(ctx context.Context) ([]models.Entrant, error)
}

// PrizesGetter resolves the selected prize.
type PrizesGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Prize, error)
}

// WinnersExcluder supplies names that have already won.
type WinnersExcluder interface {
	ExcludedNames(ctx context.Context) (map[string]bool, error)
}

// Committer runs the commit pipeline for a session snapshot.
type Committer interface {
	Run(ctx context.Context, snapshot models.SessionState) error
}

// Config holds surface tuning knobs.
type Config struct {
	// SettleDelay is how long the viewer's animation gets to decelerate
	// after a stop request before the commit pipeline runs.
	SettleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{SettleDelay: 3 * time.Second}
}

// Surface issues drawing-session commands for one controller process. Both
// the admin console and the VIP button drive the same Surface type; they
// coordinate only through the shared session document.
type Surface struct {
	sessions SessionStore
	entrants EntrantsLister
	prizes   PrizesGetter
	winners  WinnersExcluder
	pipeline Committer
	nudge    *signal.Channel
	clock    Clock
	config   Config

	rngMu sync.Mutex
	rng   *rand.Rand

	newOwnerID func() string

	commitMu      sync.Mutex
	lastCommitErr error
}

func NewSurface(sessions SessionStore, entrants EntrantsLister, prizes PrizesGetter, winners WinnersExcluder, pipeline Committer, nudge *signal.Channel, cfg Config) *Surface {
	return &Surface{
		sessions:   sessions,
		entrants:   entrants,
		prizes:     prizes,
		winners:    winners,
		pipeline:   pipeline,
		nudge:      nudge,
		clock:      clockwork.NewRealClock(),
		config:     cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		newOwnerID: func() string { return uuid.New().String() },
	}
}

// WithClock replaces the surface clock, for tests.
func (s *Surface) WithClock(clock Clock) *Surface {
	s.clock = clock
	return s
}

// WithRand replaces the random source, for tests needing determinism.
func (s *Surface) WithRand(rng *rand.Rand) *Surface {
	s.rng = rng
	return s
}

// WithOwnerIDFunc replaces the owner-id generator, for tests.
func (s *Surface) WithOwnerIDFunc(fn func() string) *Surface {
	s.newOwnerID = fn
	return s
}

// Phase returns the current snapshot and its derived phase.
func (s *Surface) Phase(ctx context.Context) (models.SessionState, session.Phase, error) {
	state, err := s.sessions.Current(ctx)
	if err != nil {
		return models.SessionState{}, session.PhaseReady, err
	}
	return state, session.DerivePhase(state), nil
}

// BeginDraw selects winners for the prize and stages them in the session
// document. Allowed only from Ready. Two controllers racing here resolve by
// last-write-wins: the later predetermined set replaces the earlier one and
// its fresh owner id makes the abandoned draw's commit a no-op.
func (s *Surface) BeginDraw(ctx context.Context, prizeID uuid.UUID) (models.SessionState, error) {
	state, phase, err := s.Phase(ctx)
	if err != nil {
		return state, err
	}
	if !session.CanAdvance(phase, session.CommandBeginDraw) {
		return state, &ValidationError{Cmd: session.CommandBeginDraw, Phase: phase}
	}

	prize, err := s.prizes.Get(ctx, prizeID)
	if err != nil {
		return state, fmt.Errorf("resolve prize: %w", err)
	}
	if prize.RemainingQuota <= 0 {
		return state, &ValidationError{Cmd: session.CommandBeginDraw, Phase: phase, Reason: "prize quota exhausted"}
	}

	pool, err := s.entrants.List(ctx)
	if err != nil {
		return state, fmt.Errorf("list entrants: %w", err)
	}
	excluded, err := s.winners.ExcludedNames(ctx)
	if err != nil {
		return state, fmt.Errorf("list excluded names: %w", err)
	}

	ownerID := s.newOwnerID()
	s.rngMu.Lock()
	selected := draw.Generate(pool, excluded, prize.RemainingQuota, prize, ownerID, s.rng, s.clock.Now())
	s.rngMu.Unlock()
	if len(selected) == 0 {
		return state, &ValidationError{Cmd: session.CommandBeginDraw, Phase: phase, Reason: "no eligible entrants"}
	}

	err = s.sessions.UpdateSession(ctx, map[string]any{
		"is_running":            true,
		"spin_requested":        false,
		"slowdown_requested":    false,
		"reveal_requested":      false,
		"show_confetti":         false,
		"selected_prize_id":     prizeID,
		"quota_for_this_draw":   prize.RemainingQuota,
		"predetermined_winners": selected,
		"committed_winners":     nil,
		"owner_session_id":      ownerID,
		"results_committed":     false,
	})
	if err != nil {
		return state, err
	}

	log.Info().
		Str("owner", ownerID).
		Str("prize_id", prizeID.String()).
		Int("winners", len(selected)).
		Msg("draw generated")
	s.nudge.Nudge("begin_draw")

	state.IsRunning = true
	state.SelectedPrizeID = &prizeID
	state.QuotaForThisDraw = prize.RemainingQuota
	state.PredeterminedWinners = selected
	state.OwnerSessionID = ownerID
	state.ResultsCommitted = false
	return state, nil
}

// StartSpin requests the spin animation. Allowed only from Generated.
func (s *Surface) StartSpin(ctx context.Context) error {
	_, phase, err := s.Phase(ctx)
	if err != nil {
		return err
	}
	if !session.CanAdvance(phase, session.CommandStartSpin) {
		return &ValidationError{Cmd: session.CommandStartSpin, Phase: phase}
	}

	if err := s.sessions.UpdateSession(ctx, map[string]any{"spin_requested": true}); err != nil {
		return err
	}
	s.nudge.Nudge("start_spin")
	return nil
}

// RequestStop asks the spin to decelerate and schedules the commit pipeline
// to run after the settle delay, giving the viewer time to visually slow
// down before the reveal is committed. Invoked again from Stopping it is the
// manual retry path: the commit re-runs immediately and the idempotency
// check makes that safe.
func (s *Surface) RequestStop(ctx context.Context) error {
	state, phase, err := s.Phase(ctx)
	if err != nil {
		return err
	}

	switch {
	case session.CanAdvance(phase, session.CommandRequestStop):
		if err := s.sessions.UpdateSession(ctx, map[string]any{
			"slowdown_requested": true,
			"reveal_requested":   true,
		}); err != nil {
			return err
		}
		state.SlowdownRequested = true
		state.RevealRequested = true
		s.nudge.Nudge("request_stop")
		s.scheduleCommit(ctx, state, s.config.SettleDelay)
		return nil
	case phase == session.PhaseStopping:
		// Retry of a failed or stalled commit.
		s.scheduleCommit(ctx, state, 0)
		return nil
	default:
		return &ValidationError{Cmd: session.CommandRequestStop, Phase: phase}
	}
}

// ClearResults resets the session document to defaults from any phase. It is
// idempotent; clearing twice lands on the same terminal state. A clear does
// not cooperatively cancel an in-flight commit, but the pipeline's ownership
// re-check keeps that commit from writing into the reset session.
func (s *Surface) ClearResults(ctx context.Context) error {
	if err := s.sessions.ResetSession(ctx); err != nil {
		return err
	}
	log.Info().Msg("session cleared")
	s.nudge.Nudge("clear")
	return nil
}

// Advance maps the VIP controller's single button onto the next sensible
// command for the current phase.
func (s *Surface) Advance(ctx context.Context) error {
	state, phase, err := s.Phase(ctx)
	if err != nil {
		return err
	}

	switch phase {
	case session.PhaseReady:
		if session.IsDisplayingResults(state) {
			return s.ClearResults(ctx)
		}
		if state.SelectedPrizeID == nil {
			return &ValidationError{Cmd: session.CommandBeginDraw, Phase: phase, Reason: "no prize selected"}
		}
		_, err := s.BeginDraw(ctx, *state.SelectedPrizeID)
		return err
	case session.PhaseGenerated:
		return s.StartSpin(ctx)
	case session.PhaseSpinning:
		return s.RequestStop(ctx)
	case session.PhaseStopping:
		// Reveal already in progress; the button does nothing.
		return nil
	default:
		return nil
	}
}

// SelectPrize stages a prize selection without starting a draw. Allowed only
// from Ready so a selection change cannot invalidate generated winners.
func (s *Surface) SelectPrize(ctx context.Context, prizeID uuid.UUID) error {
	_, phase, err := s.Phase(ctx)
	if err != nil {
		return err
	}
	if phase != session.PhaseReady {
		return &ValidationError{Cmd: session.CommandBeginDraw, Phase: phase, Reason: "selection locked during a draw"}
	}

	prize, err := s.prizes.Get(ctx, prizeID)
	if err != nil {
		return fmt.Errorf("resolve prize: %w", err)
	}
	err = s.sessions.UpdateSession(ctx, map[string]any{
		"selected_prize_id":   prizeID,
		"quota_for_this_draw": prize.RemainingQuota,
	})
	if err != nil {
		return err
	}
	s.nudge.Nudge("select_prize")
	return nil
}

// CommitError reports the outcome of the most recent scheduled commit.
func (s *Surface) CommitError() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.lastCommitErr
}

// scheduleCommit runs the pipeline after delay on the surface clock. The
// commit outlives the triggering request's context deliberately: an
// already-started pipeline run attempts to complete its writes even if the
// controller disconnects.
func (s *Surface) scheduleCommit(ctx context.Context, snapshot models.SessionState, delay time.Duration) {
	commitCtx := context.WithoutCancel(ctx)
	go func() {
		if delay > 0 {
			timer := s.clock.NewTimer(delay)
			defer timer.Stop()
			<-timer.Chan()
		}
		err := s.pipeline.Run(commitCtx, snapshot)
		s.commitMu.Lock()
		s.lastCommitErr = err
		s.commitMu.Unlock()
		if err != nil {
			log.Error().Err(err).Str("owner", snapshot.OwnerSessionID).Msg("commit pipeline failed")
			return
		}
		s.nudge.Nudge("committed")
	}()
}
