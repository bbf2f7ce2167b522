package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

// DocumentID is the fixed id of the singleton session document. It is created
// lazily on first write and reset to defaults by an explicit clear, never
// deleted mid-event.
const DocumentID = "current"

// Store provides typed access to the shared session document.
type Store struct {
	docs store.Store
}

// NewStore wraps a document store with session-document semantics.
func NewStore(docs store.Store) *Store {
	return &Store{docs: docs}
}

// Current reads the latest session snapshot. An absent document is the
// default Ready state, not an error.
func (s *Store) Current(ctx context.Context) (models.SessionState, error) {
	doc, err := s.docs.Get(ctx, store.CollectionSession, DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.SessionState{}, nil
		}
		return models.SessionState{}, fmt.Errorf("read session: %w", err)
	}
	return Decode(doc), nil
}

// UpdateSession merges partial fields into the session document, creating it
// when absent. Full overwrites are reserved for ResetSession so concurrent
// writers never clobber unrelated fields.
func (s *Store) UpdateSession(ctx context.Context, fields map[string]any) error {
	if err := s.docs.Upsert(ctx, store.CollectionSession, DocumentID, fields); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ResetSession overwrites the session document with defaults.
func (s *Store) ResetSession(ctx context.Context) error {
	if err := s.docs.Set(ctx, store.CollectionSession, DocumentID, models.SessionState{}); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// Subscribe streams session snapshots, starting with the current one. An
// absent or malformed document yields the default state.
func (s *Store) Subscribe(ctx context.Context) (<-chan models.SessionState, error) {
	docs, err := s.docs.Watch(ctx, store.CollectionSession)
	if err != nil {
		return nil, fmt.Errorf("subscribe session: %w", err)
	}

	out := make(chan models.SessionState, 1)
	go func() {
		defer close(out)
		for snapshot := range docs {
			state := models.SessionState{}
			for _, doc := range snapshot {
				if doc.ID == DocumentID {
					state = Decode(doc)
					break
				}
			}
			select {
			case out <- state:
			case <-ctx.Done():
				return
			default:
				// Conflate: replace the pending snapshot with the newer one.
				select {
				case <-out:
				default:
				}
				out <- state
			}
		}
	}()
	return out, nil
}

// Decode converts a raw session document into a SessionState. Decode never
// fails: unparseable data maps to the default state with all flags false,
// which derives to Ready. LastUpdated always carries the server write time.
func Decode(doc store.Document) models.SessionState {
	var state models.SessionState
	if err := json.Unmarshal(doc.Data, &state); err != nil {
		log.Warn().Err(err).Msg("malformed session document, using defaults")
		state = models.SessionState{}
	}
	state.LastUpdated = doc.UpdatedAt
	return state
}
