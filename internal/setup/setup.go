// Package setup wires the shared core of every drawdeck process: the
// document store backend, the typed session store, the CRUD apps, the command
// surface, and the optional nudge channel.
package setup

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/command"
	"github.com/drawdeck/drawdeck/internal/commit"
	"github.com/drawdeck/drawdeck/internal/config"
	"github.com/drawdeck/drawdeck/internal/entrants"
	"github.com/drawdeck/drawdeck/internal/prizes"
	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/signal"
	"github.com/drawdeck/drawdeck/internal/store"
	"github.com/drawdeck/drawdeck/internal/winners"
)

// Core holds one process's wired components.
type Core struct {
	Store    store.Store
	Sessions *session.Store
	Entrants *entrants.App
	Prizes   *prizes.App
	Winners  *winners.Repository
	Surface  *command.Surface
	Nudge    *signal.Channel

	cleanups []func()
}

// Build constructs the core from config. Callers must Close it.
func Build(ctx context.Context, cfg *config.Config) (*Core, error) {
	core := &Core{}

	docs, err := core.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	core.Store = docs

	core.Nudge = core.buildNudge(cfg)

	core.Sessions = session.NewStore(docs)
	core.Entrants = entrants.NewApp(entrants.NewRepository(docs))
	core.Prizes = prizes.NewApp(prizes.NewRepository(docs), core.Sessions)
	core.Winners = winners.NewRepository(docs)

	pipeline := commit.NewPipeline(core.Sessions, core.Winners, prizes.NewRepository(docs), commit.Config{
		PacingDelay: cfg.PacingDelay(),
		MaxRetries:  cfg.Draw.MaxRetries,
		RetryDelay:  cfg.RetryDelay(),
	})
	core.Surface = command.NewSurface(
		core.Sessions,
		core.Entrants,
		prizes.NewRepository(docs),
		core.Winners,
		pipeline,
		core.Nudge,
		command.Config{SettleDelay: cfg.SettleDelay()},
	)
	return core, nil
}

// Close releases backend connections.
func (c *Core) Close() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
}

func (c *Core) buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Warn().Msg("using in-memory store: state is process-local and not shared across surfaces")
		return store.NewMemoryStore(), nil

	case config.BackendNATS:
		s, err := store.NewNATSStore(store.NATSConfig{
			URL:           cfg.Store.NATSURL,
			BucketPrefix:  cfg.Store.BucketPrefix,
			MaxReconnects: -1,
			ReconnectWait: store.DefaultNATSConfig().ReconnectWait,
		})
		if err != nil {
			return nil, fmt.Errorf("build NATS store: %w", err)
		}
		c.cleanups = append(c.cleanups, s.Close)
		return s, nil

	case config.BackendPostgres:
		s, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:          cfg.Store.PostgresDSN,
			PollInterval: cfg.PollInterval(),
		})
		if err != nil {
			return nil, fmt.Errorf("build postgres store: %w", err)
		}
		c.cleanups = append(c.cleanups, s.Close)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (c *Core) buildNudge(cfg *config.Config) *signal.Channel {
	if !cfg.Signal.Enabled {
		return nil
	}
	nc, err := nats.Connect(cfg.Signal.NATSURL)
	if err != nil {
		log.Warn().Err(err).Msg("nudge channel unavailable, continuing without it")
		return nil
	}
	c.cleanups = append(c.cleanups, nc.Close)
	return signal.New(nc, cfg.Signal.Subject)
}
