package winners

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

// Repository persists winner records. Records are append-only: they are added
// by the commit pipeline, listed for display and exclusion, and only ever
// removed wholesale when an operator wipes history.
type Repository struct {
	docs store.Store
}

func NewRepository(docs store.Store) *Repository {
	return &Repository{docs: docs}
}

// Add persists one winner record under its own id.
func (r *Repository) Add(ctx context.Context, record models.WinnerRecord) error {
	if err := r.docs.Set(ctx, store.CollectionWinners, record.ID.String(), record); err != nil {
		return fmt.Errorf("add winner record: %w", err)
	}
	return nil
}

// List returns all winner records ordered by win time.
func (r *Repository) List(ctx context.Context) ([]models.WinnerRecord, error) {
	docs, err := r.docs.List(ctx, store.CollectionWinners)
	if err != nil {
		return nil, fmt.Errorf("list winner records: %w", err)
	}
	records := decodeAll(docs)
	sort.Slice(records, func(i, j int) bool {
		return records[i].WonAt.Before(records[j].WonAt)
	})
	return records, nil
}

// ListBySession returns the records already persisted for one draw execution.
// The commit pipeline uses this as its duplicate-submission pre-check.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.WinnerRecord, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.WinnerRecord
	for _, rec := range all {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ExcludedNames returns the display names that have already won, used to keep
// prior winners out of the next draw.
func (r *Repository) ExcludedNames(ctx context.Context) (map[string]bool, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(all))
	for _, rec := range all {
		excluded[rec.EntrantName] = true
	}
	return excluded, nil
}

// Clear wipes the winner history.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.docs.Clear(ctx, store.CollectionWinners); err != nil {
		return fmt.Errorf("clear winner records: %w", err)
	}
	return nil
}

func decodeAll(docs []store.Document) []models.WinnerRecord {
	records := make([]models.WinnerRecord, 0, len(docs))
	for _, doc := range docs {
		var rec models.WinnerRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}
