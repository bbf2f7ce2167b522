// Package draw selects prize winners by unweighted random sampling without
// replacement.
package draw

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/drawdeck/drawdeck/internal/models"
)

// SessionID builds the idempotency key for one draw execution: the owner id
// of the in-flight draw plus the prize it is drawing for, so sessions stay
// distinguishable across prizes.
func SessionID(ownerID string, prize *models.Prize) string {
	prizeKey := "none"
	if prize != nil {
		prizeKey = prize.ID.String()
	}
	return fmt.Sprintf("%s:%s", ownerID, prizeKey)
}

// Generate picks min(quota, eligible) winners from entrants, excluding
// already-won display names. The shuffle is a uniform Fisher-Yates over the
// eligible subset; output order is shuffle order. Deterministic for a fixed
// rng, which tests inject seeded.
//
// Exclusion matches on display name equality, so duplicate names share a
// single exclusion slot. Known openness, kept deliberately.
func Generate(entrants []models.Entrant, excluded map[string]bool, quota int, prize *models.Prize, ownerID string, rng *rand.Rand, wonAt time.Time) []models.WinnerRecord {
	if quota <= 0 {
		return nil
	}

	eligible := make([]models.Entrant, 0, len(entrants))
	for _, e := range entrants {
		if excluded[e.DisplayName] {
			continue
		}
		eligible = append(eligible, e)
	}
	if len(eligible) == 0 {
		return nil
	}

	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if quota > len(eligible) {
		quota = len(eligible)
	}

	sessionID := SessionID(ownerID, prize)
	winners := make([]models.WinnerRecord, 0, quota)
	for _, e := range eligible[:quota] {
		record := models.WinnerRecord{
			ID:          uuid.New(),
			EntrantName: e.DisplayName,
			WonAt:       wonAt,
			SessionID:   sessionID,
		}
		if prize != nil {
			id := prize.ID
			record.PrizeID = &id
			record.PrizeName = prize.Name
		}
		winners = append(winners, record)
	}
	return winners
}
