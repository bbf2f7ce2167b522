package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the singleton shared document describing the currently
// active draw. It is owned by no single process: every controller and viewer
// derives its local phase from the latest snapshot, and all writers use
// partial-field merges so concurrent updates to unrelated fields never clobber
// each other. The explicit reset is the only full overwrite.
type SessionState struct {
	IsRunning         bool `json:"is_running"`
	SpinRequested     bool `json:"spin_requested"`
	SlowdownRequested bool `json:"slowdown_requested"`
	RevealRequested   bool `json:"reveal_requested"`

	SelectedPrizeID  *uuid.UUID `json:"selected_prize_id,omitempty"`
	QuotaForThisDraw int        `json:"quota_for_this_draw"`

	// PredeterminedWinners is computed once per OwnerSessionID, before the
	// spin starts, and never changes afterward. CommittedWinners is only
	// non-empty once ResultsCommitted is true.
	PredeterminedWinners []WinnerRecord `json:"predetermined_winners,omitempty"`
	CommittedWinners     []WinnerRecord `json:"committed_winners,omitempty"`

	ShowConfetti bool `json:"show_confetti"`

	// OwnerSessionID identifies which draw execution is in flight.
	// ResultsCommitted transitions false->true exactly once per owner.
	OwnerSessionID   string `json:"owner_session_id,omitempty"`
	ResultsCommitted bool   `json:"results_committed"`

	LastUpdated time.Time `json:"last_updated"`
}
