package prizes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

// ErrPrizeNotFound is returned when a referenced prize does not exist. Unlike
// the session document, an absent prize is fatal to the caller.
var ErrPrizeNotFound = errors.New("prize not found")

// CreatePrizeRequest carries the fields for a new prize.
type CreatePrizeRequest struct {
	Name        string
	Description string
	Quota       int
}

// UpdatePrizeRequest carries optional admin edits.
type UpdatePrizeRequest struct {
	Name           *string
	Description    *string
	Quota          *int
	RemainingQuota *int
}

// Repository implements prize data access over the document store.
type Repository struct {
	docs store.Store
	now  func() time.Time
}

func NewRepository(docs store.Store) *Repository {
	return &Repository{docs: docs, now: time.Now}
}

func (r *Repository) Create(ctx context.Context, req CreatePrizeRequest) (*models.Prize, error) {
	prize := models.Prize{
		ID:             uuid.New(),
		Name:           req.Name,
		Description:    req.Description,
		Quota:          req.Quota,
		RemainingQuota: req.Quota,
		CreatedAt:      r.now(),
	}
	if err := r.docs.Set(ctx, store.CollectionPrizes, prize.ID.String(), prize); err != nil {
		return nil, fmt.Errorf("create prize: %w", err)
	}
	return &prize, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	doc, err := r.docs.Get(ctx, store.CollectionPrizes, id.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPrizeNotFound
		}
		return nil, fmt.Errorf("get prize: %w", err)
	}
	var prize models.Prize
	if err := json.Unmarshal(doc.Data, &prize); err != nil {
		return nil, fmt.Errorf("decode prize: %w", err)
	}
	return &prize, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Prize, error) {
	docs, err := r.docs.List(ctx, store.CollectionPrizes)
	if err != nil {
		return nil, fmt.Errorf("list prizes: %w", err)
	}
	out := make([]models.Prize, 0, len(docs))
	for _, doc := range docs {
		var prize models.Prize
		if err := json.Unmarshal(doc.Data, &prize); err != nil {
			continue
		}
		out = append(out, prize)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, req UpdatePrizeRequest) (*models.Prize, error) {
	fields := make(map[string]any)
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Quota != nil {
		fields["quota"] = *req.Quota
	}
	if req.RemainingQuota != nil {
		fields["remaining_quota"] = *req.RemainingQuota
	}
	if len(fields) > 0 {
		if err := r.docs.Update(ctx, store.CollectionPrizes, id.String(), fields); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrPrizeNotFound
			}
			return nil, fmt.Errorf("update prize: %w", err)
		}
	}
	return r.Get(ctx, id)
}

// SetRemainingQuota writes only the remaining quota. This is the commit
// pipeline's decrement path.
func (r *Repository) SetRemainingQuota(ctx context.Context, id uuid.UUID, remaining int) error {
	err := r.docs.Update(ctx, store.CollectionPrizes, id.String(), map[string]any{
		"remaining_quota": remaining,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrizeNotFound
		}
		return fmt.Errorf("set remaining quota: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.docs.Remove(ctx, store.CollectionPrizes, id.String()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrizeNotFound
		}
		return fmt.Errorf("delete prize: %w", err)
	}
	return nil
}
