// Package commit implements the one code path allowed to persist winner
// records, decrement prize quota, and flip the session to its revealed state.
package commit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// SessionStore defines what the pipeline needs from the session document.
type SessionStore interface {
	Current(ctx context.Context) (models.SessionState, error)
	UpdateSession(ctx context.Context, fields map[string]any) error
}

// WinnersRepository defines what the pipeline needs from winner storage.
type WinnersRepository interface {
	Add(ctx context.Context, record models.WinnerRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]models.WinnerRecord, error)
}

// PrizesRepository defines what the pipeline needs from prize storage.
type PrizesRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Prize, error)
	SetRemainingQuota(ctx context.Context, id uuid.UUID, remaining int) error
}

// Config holds pipeline tuning knobs.
type Config struct {
	// PacingDelay spaces the individual winner writes to reduce write
	// contention on the shared store. Not a correctness mechanism.
	PacingDelay time.Duration
	// MaxRetries bounds retries of transient store failures.
	MaxRetries int
	// RetryDelay is the linear backoff unit: attempt N waits N*RetryDelay.
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		PacingDelay: 120 * time.Millisecond,
		MaxRetries:  3,
		RetryDelay:  time.Second,
	}
}

// Pipeline runs the commit protocol at most once per owner session id, even
// under concurrent invocation or retry after partial failure. The store
// offers no atomic claim primitive, so the guard is layered idempotency:
// the ResultsCommitted flag, a per-session duplicate lookup, and an in-process
// in-flight map for controllers that double-fire locally.
type Pipeline struct {
	sessions SessionStore
	winners  WinnersRepository
	prizes   PrizesRepository
	clock    Clock
	config   Config

	inFlight   map[string]bool
	inFlightMu sync.Mutex
}

func NewPipeline(sessions SessionStore, winners WinnersRepository, prizes PrizesRepository, cfg Config) *Pipeline {
	return &Pipeline{
		sessions: sessions,
		winners:  winners,
		prizes:   prizes,
		clock:    clockwork.NewRealClock(),
		config:   cfg,
		inFlight: make(map[string]bool),
	}
}

// WithClock replaces the pipeline clock, for tests.
func (p *Pipeline) WithClock(clock Clock) *Pipeline {
	p.clock = clock
	return p
}

// Run commits the snapshot's predetermined winners. Transient store errors
// are retried with linear backoff up to the ceiling; any other failure is
// returned to the initiating controller with the session left in its
// Stopping state so a manual retry re-enters the idempotency check.
func (p *Pipeline) Run(ctx context.Context, snapshot models.SessionState) error {
	ownerID := snapshot.OwnerSessionID
	if ownerID == "" || len(snapshot.PredeterminedWinners) == 0 {
		log.Debug().Msg("commit requested with nothing to commit")
		return nil
	}

	p.inFlightMu.Lock()
	if p.inFlight[ownerID] {
		p.inFlightMu.Unlock()
		log.Debug().Str("owner", ownerID).Msg("commit already in flight locally")
		return nil
	}
	p.inFlight[ownerID] = true
	p.inFlightMu.Unlock()
	defer func() {
		p.inFlightMu.Lock()
		delete(p.inFlight, ownerID)
		p.inFlightMu.Unlock()
	}()

	var err error
	for attempt := 1; ; attempt++ {
		err = p.runOnce(ctx, snapshot)
		if err == nil || !store.IsTransient(err) {
			return err
		}
		if attempt > p.config.MaxRetries {
			return fmt.Errorf("commit failed after %d retries: %w", p.config.MaxRetries, err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("owner", ownerID).Msg("transient commit failure, retrying")
		if serr := p.sleep(ctx, time.Duration(attempt)*p.config.RetryDelay); serr != nil {
			return serr
		}
	}
}

func (p *Pipeline) runOnce(ctx context.Context, snapshot models.SessionState) error {
	ownerID := snapshot.OwnerSessionID
	predetermined := snapshot.PredeterminedWinners
	sessionID := predetermined[0].SessionID

	// Step 1: idempotency pre-check. Only the committed flag for this owner is
	// proof the whole protocol ran; winner records alone are not, since a
	// failure at the quota or session step leaves them fully written with the
	// commit still unfinished. Such a retry resumes at the later steps.
	current, err := p.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current.OwnerSessionID == ownerID && current.ResultsCommitted {
		log.Debug().Str("owner", ownerID).Msg("results already committed, skipping")
		return nil
	}
	existing, err := p.winners.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	present := make(map[uuid.UUID]bool, len(existing))
	for _, rec := range existing {
		present[rec.ID] = true
	}

	// Step 2: persist winners one by one with inter-write pacing. Record ids
	// come from the shared document, so a retry after partial failure only
	// fills in the missing records.
	wrote := false
	for _, record := range predetermined {
		if present[record.ID] {
			continue
		}
		if wrote {
			if err := p.sleep(ctx, p.config.PacingDelay); err != nil {
				return err
			}
		}
		if err := p.winners.Add(ctx, record); err != nil {
			return err
		}
		wrote = true
	}

	// Step 3: write the decremented quota. The target is computed from the
	// draw-time basis captured in the snapshot, not from the current remaining
	// quota, so a retry that already wrote it cannot decrement twice.
	quotaExhausted := false
	if snapshot.SelectedPrizeID != nil {
		prize, err := p.prizes.Get(ctx, *snapshot.SelectedPrizeID)
		if err != nil {
			return err
		}
		remaining := snapshot.QuotaForThisDraw - len(predetermined)
		if remaining < 0 {
			remaining = 0
		}
		if prize.RemainingQuota != remaining {
			if err := p.prizes.SetRemainingQuota(ctx, prize.ID, remaining); err != nil {
				return err
			}
		}
		quotaExhausted = remaining == 0
		log.Info().
			Str("prize_id", prize.ID.String()).
			Int("committed", len(predetermined)).
			Int("remaining", remaining).
			Msg("prize quota decremented")
	}

	// Ownership re-check before the final write: a clear issued mid-commit
	// replaces or empties OwnerSessionID, and committing results into a
	// session the operator already reset would resurrect it.
	current, err = p.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current.OwnerSessionID != ownerID {
		log.Warn().
			Str("owner", ownerID).
			Str("current_owner", current.OwnerSessionID).
			Msg("session cleared or replaced mid-commit, skipping final write")
		return nil
	}

	// Step 4: flip the session to its revealed terminal state.
	fields := map[string]any{
		"committed_winners":  predetermined,
		"results_committed":  true,
		"is_running":         false,
		"spin_requested":     false,
		"slowdown_requested": false,
		"show_confetti":      true,
	}
	if quotaExhausted {
		fields["selected_prize_id"] = nil
		fields["quota_for_this_draw"] = 0
	}
	if err := p.sessions.UpdateSession(ctx, fields); err != nil {
		return err
	}

	log.Info().
		Str("owner", ownerID).
		Str("session_id", sessionID).
		Int("winners", len(predetermined)).
		Msg("commit complete")
	return nil
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
