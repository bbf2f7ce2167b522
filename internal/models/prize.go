package models

import (
	"time"

	"github.com/google/uuid"
)

// Prize represents an awardable item with a finite winner quota.
// Invariant: 0 <= RemainingQuota <= Quota. RemainingQuota is mutated only by
// admin edits and by the commit pipeline's quota decrement.
type Prize struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Quota          int       `json:"quota"`
	RemainingQuota int       `json:"remaining_quota"`
	CreatedAt      time.Time `json:"created_at"`
}
