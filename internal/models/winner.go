package models

import (
	"time"

	"github.com/google/uuid"
)

// WinnerRecord is one persisted win. Records are append-only history and are
// never mutated after creation. SessionID groups every winner produced by one
// draw execution and is the idempotency key for the commit pipeline.
type WinnerRecord struct {
	ID          uuid.UUID  `json:"id"`
	EntrantName string     `json:"entrant_name"`
	WonAt       time.Time  `json:"won_at"`
	PrizeID     *uuid.UUID `json:"prize_id,omitempty"`
	PrizeName   string     `json:"prize_name,omitempty"`
	SessionID   string     `json:"session_id"`
}
