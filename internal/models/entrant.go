package models

import (
	"time"

	"github.com/google/uuid"
)

// Entrant represents a person eligible to win a prize.
// Entrants are immutable once created; display names are not unique.
type Entrant struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}
