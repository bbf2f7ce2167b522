package prizes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
)

// PrizesRepository defines what the app layer needs from the repository.
type PrizesRepository interface {
	Create(ctx context.Context, req CreatePrizeRequest) (*models.Prize, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Prize, error)
	List(ctx context.Context) ([]models.Prize, error)
	Update(ctx context.Context, id uuid.UUID, req UpdatePrizeRequest) (*models.Prize, error)
	SetRemainingQuota(ctx context.Context, id uuid.UUID, remaining int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionSelection is the slice of the session store the prize app needs to
// keep the selected-prize pointer consistent when a prize disappears.
type SessionSelection interface {
	Current(ctx context.Context) (models.SessionState, error)
	UpdateSession(ctx context.Context, fields map[string]any) error
}

// App handles prize business logic.
type App struct {
	repo     PrizesRepository
	sessions SessionSelection
}

func NewApp(repo PrizesRepository, sessions SessionSelection) *App {
	return &App{repo: repo, sessions: sessions}
}

func (a *App) Create(ctx context.Context, req CreatePrizeRequest) (*models.Prize, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Quota < 1 {
		return nil, fmt.Errorf("quota must be at least 1")
	}
	prize, err := a.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create prize: %w", err)
	}
	log.Info().Str("prize_id", prize.ID.String()).Str("name", prize.Name).Int("quota", prize.Quota).Msg("created prize")
	return prize, nil
}

func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	return a.repo.Get(ctx, id)
}

func (a *App) List(ctx context.Context) ([]models.Prize, error) {
	return a.repo.List(ctx)
}

func (a *App) Update(ctx context.Context, id uuid.UUID, req UpdatePrizeRequest) (*models.Prize, error) {
	if err := a.validateUpdate(ctx, id, req); err != nil {
		return nil, err
	}
	prize, err := a.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update prize: %w", err)
	}
	return prize, nil
}

// Delete removes a prize. When the deleted prize is the current selection,
// the selection is cleared everywhere via the session document so no
// controller is left pointing at a dangling prize.
func (a *App) Delete(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete prize: %w", err)
	}

	state, err := a.sessions.Current(ctx)
	if err != nil {
		return fmt.Errorf("read session after prize delete: %w", err)
	}
	if state.SelectedPrizeID != nil && *state.SelectedPrizeID == id {
		err := a.sessions.UpdateSession(ctx, map[string]any{
			"selected_prize_id":   nil,
			"quota_for_this_draw": 0,
		})
		if err != nil {
			return fmt.Errorf("clear prize selection: %w", err)
		}
		log.Info().Str("prize_id", id.String()).Msg("cleared session selection for deleted prize")
	}
	return nil
}

func (a *App) validateUpdate(ctx context.Context, id uuid.UUID, req UpdatePrizeRequest) error {
	if req.Name != nil && *req.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if req.Quota != nil && *req.Quota < 1 {
		return fmt.Errorf("quota must be at least 1")
	}
	if req.RemainingQuota != nil {
		if *req.RemainingQuota < 0 {
			return fmt.Errorf("remaining quota cannot be negative")
		}
		quota := 0
		if req.Quota != nil {
			quota = *req.Quota
		} else {
			prize, err := a.repo.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("prize not found: %w", err)
			}
			quota = prize.Quota
		}
		if *req.RemainingQuota > quota {
			return fmt.Errorf("remaining quota cannot exceed quota")
		}
	}
	return nil
}
