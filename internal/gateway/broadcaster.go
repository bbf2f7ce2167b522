package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/session"
)

// SessionSource is the read side of the session document.
type SessionSource interface {
	Subscribe(ctx context.Context) (<-chan models.SessionState, error)
	Current(ctx context.Context) (models.SessionState, error)
}

// SessionMessage is the wire format pushed to display clients. ServerTime
// lets clients sync their local animation clocks against the gateway.
type SessionMessage struct {
	Type       string        `json:"type"`
	Phase      session.Phase `json:"phase"`
	Displaying bool          `json:"displaying"`
	// RevealPending tells displays a stop has been accepted and the reveal is
	// imminent, before the results land in the document.
	RevealPending bool                `json:"reveal_pending"`
	State         models.SessionState `json:"state"`
	ServerTime    time.Time           `json:"server_time"`
}

func newSessionMessage(state models.SessionState) SessionMessage {
	return SessionMessage{
		Type:          "session",
		Phase:         session.DerivePhase(state),
		Displaying:    session.IsDisplayingResults(state),
		RevealPending: state.RevealRequested && !state.ResultsCommitted,
		State:         state,
		ServerTime:    time.Now(),
	}
}

// Broadcaster forwards every session change to all connected displays.
type Broadcaster struct {
	sessions SessionSource
	manager  *ConnectionManager
}

func NewBroadcaster(sessions SessionSource, manager *ConnectionManager) *Broadcaster {
	return &Broadcaster{sessions: sessions, manager: manager}
}

// Run subscribes to the session document and fans snapshots out until ctx is
// done.
func (b *Broadcaster) Run(ctx context.Context) error {
	updates, err := b.sessions.Subscribe(ctx)
	if err != nil {
		return err
	}
	log.Info().Msg("session broadcaster started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			b.manager.Broadcast(newSessionMessage(state))
		}
	}
}
