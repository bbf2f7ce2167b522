package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Collection names shared by every backend.
const (
	CollectionEntrants = "entrants"
	CollectionPrizes   = "prizes"
	CollectionWinners  = "winners"
	CollectionSession  = "session"
)

// Document is one stored item. Data is the raw JSON body; UpdatedAt is the
// server-side write time already converted to a local instant.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store defines what the coordination core needs from the remote document
// service. Every method may suspend on the network; Watch delivers
// full-collection snapshots in server-commit order for its own subscription,
// with no ordering guarantee relative to other subscribers.
type Store interface {
	// Add inserts a new document and returns its generated id.
	Add(ctx context.Context, collection string, doc any) (string, error)
	// Update merges the given top-level fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Upsert merges fields into the document, creating it when absent.
	Upsert(ctx context.Context, collection, id string, fields map[string]any) error
	// Set fully overwrites the document, creating it when absent.
	Set(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string) (Document, error)
	// List returns all documents ordered by UpdatedAt ascending.
	List(ctx context.Context, collection string) ([]Document, error)
	Remove(ctx context.Context, collection, id string) error
	RemoveMany(ctx context.Context, collection string, ids []string) error
	Clear(ctx context.Context, collection string) error
	// Watch streams full-collection snapshots, starting with the current
	// contents. The channel closes when ctx is done. Snapshots may be
	// conflated under load; the latest one always reflects every prior write
	// this subscriber has been notified of.
	Watch(ctx context.Context, collection string) (<-chan []Document, error)
}

// mergeFields applies a top-level field merge onto an existing JSON body.
// Absent existing bodies merge onto an empty object.
func mergeFields(existing json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &obj); err != nil {
			return nil, fmt.Errorf("decode existing document: %w", err)
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		obj[k] = raw
	}
	merged, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode merged document: %w", err)
	}
	return merged, nil
}

// encodeDoc marshals an arbitrary document body to raw JSON.
func encodeDoc(doc any) (json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}
