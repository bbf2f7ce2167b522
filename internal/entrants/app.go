package entrants

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
)

// EntrantsRepository defines what the app layer needs from the repository.
type EntrantsRepository interface {
	Add(ctx context.Context, displayName string) (*models.Entrant, error)
	List(ctx context.Context) ([]models.Entrant, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveMany(ctx context.Context, ids []uuid.UUID) error
	Clear(ctx context.Context) error
}

// App handles entrant business logic.
type App struct {
	repo EntrantsRepository
}

func NewApp(repo EntrantsRepository) *App {
	return &App{repo: repo}
}

// Add creates an entrant from a display name.
func (a *App) Add(ctx context.Context, displayName string) (*models.Entrant, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("display name is required")
	}
	entrant, err := a.repo.Add(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to add entrant: %w", err)
	}
	return entrant, nil
}

// AddBulk creates entrants from a list of names, as produced by the import
// screen. Blank lines are skipped; duplicates are kept.
func (a *App) AddBulk(ctx context.Context, names []string) (int, error) {
	added := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := a.repo.Add(ctx, name); err != nil {
			return added, fmt.Errorf("failed to add entrant %q: %w", name, err)
		}
		added++
	}
	log.Info().Int("added", added).Msg("bulk entrant import complete")
	return added, nil
}

func (a *App) List(ctx context.Context) ([]models.Entrant, error) {
	return a.repo.List(ctx)
}

func (a *App) Remove(ctx context.Context, id uuid.UUID) error {
	return a.repo.Remove(ctx, id)
}

func (a *App) RemoveMany(ctx context.Context, ids []uuid.UUID) error {
	return a.repo.RemoveMany(ctx, ids)
}

func (a *App) Clear(ctx context.Context) error {
	return a.repo.Clear(ctx)
}
