package entrants

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

// Repository implements entrant data access over the document store.
type Repository struct {
	docs store.Store
	now  func() time.Time
}

func NewRepository(docs store.Store) *Repository {
	return &Repository{docs: docs, now: time.Now}
}

// Add creates a single entrant. Display names are not unique.
func (r *Repository) Add(ctx context.Context, displayName string) (*models.Entrant, error) {
	entrant := models.Entrant{
		ID:          uuid.New(),
		DisplayName: displayName,
		JoinedAt:    r.now(),
	}
	if err := r.docs.Set(ctx, store.CollectionEntrants, entrant.ID.String(), entrant); err != nil {
		return nil, fmt.Errorf("add entrant: %w", err)
	}
	return &entrant, nil
}

// List returns all entrants ordered by join time.
func (r *Repository) List(ctx context.Context) ([]models.Entrant, error) {
	docs, err := r.docs.List(ctx, store.CollectionEntrants)
	if err != nil {
		return nil, fmt.Errorf("list entrants: %w", err)
	}
	entrants := make([]models.Entrant, 0, len(docs))
	for _, doc := range docs {
		var e models.Entrant
		if err := json.Unmarshal(doc.Data, &e); err != nil {
			continue
		}
		entrants = append(entrants, e)
	}
	sort.Slice(entrants, func(i, j int) bool {
		return entrants[i].JoinedAt.Before(entrants[j].JoinedAt)
	})
	return entrants, nil
}

// Remove deletes one entrant.
func (r *Repository) Remove(ctx context.Context, id uuid.UUID) error {
	if err := r.docs.Remove(ctx, store.CollectionEntrants, id.String()); err != nil {
		return fmt.Errorf("remove entrant: %w", err)
	}
	return nil
}

// RemoveMany deletes a batch of entrants.
func (r *Repository) RemoveMany(ctx context.Context, ids []uuid.UUID) error {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	if err := r.docs.RemoveMany(ctx, store.CollectionEntrants, strIDs); err != nil {
		return fmt.Errorf("remove entrants: %w", err)
	}
	return nil
}

// Clear deletes every entrant.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.docs.Clear(ctx, store.CollectionEntrants); err != nil {
		return fmt.Errorf("clear entrants: %w", err)
	}
	return nil
}
