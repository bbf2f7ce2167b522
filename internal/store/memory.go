package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the reference Store implementation: a mutex-guarded document
// map with per-subscriber snapshot fanout. Used by tests and single-host runs.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
	watchers    map[string][]*memoryWatcher
	now         func() time.Time
}

type memoryWatcher struct {
	ch     chan []Document
	done   <-chan struct{}
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		watchers:    make(map[string][]*memoryWatcher),
		now:         time.Now,
	}
}

func (s *MemoryStore) collection(name string) map[string]Document {
	col, ok := s.collections[name]
	if !ok {
		col = make(map[string]Document)
		s.collections[name] = col
	}
	return col
}

func (s *MemoryStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	raw, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = Document{ID: id, Data: raw, UpdatedAt: s.now()}
	s.notifyLocked(collection)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	existing, ok := col[id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(existing.Data, fields)
	if err != nil {
		return err
	}
	col[id] = Document{ID: id, Data: merged, UpdatedAt: s.now()}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	merged, err := mergeFields(col[id].Data, fields)
	if err != nil {
		return err
	}
	col[id] = Document{ID: id, Data: merged, UpdatedAt: s.now()}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = Document{ID: id, Data: raw, UpdatedAt: s.now()}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(collection)[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(collection), nil
}

func (s *MemoryStore) Remove(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	if _, ok := col[id]; !ok {
		return ErrNotFound
	}
	delete(col, id)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) RemoveMany(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	for _, id := range ids {
		delete(col, id)
	}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[collection] = make(map[string]Document)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, collection string) (<-chan []Document, error) {
	w := &memoryWatcher{
		ch:   make(chan []Document, 1),
		done: ctx.Done(),
	}

	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], w)
	w.send(s.snapshotLocked(collection))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		live := s.watchers[collection][:0]
		for _, other := range s.watchers[collection] {
			if other == w {
				other.closed = true
				close(other.ch)
				continue
			}
			live = append(live, other)
		}
		s.watchers[collection] = live
	}()

	return w.ch, nil
}

// send conflates snapshots: if the subscriber has not consumed the previous
// one, it is replaced by the newer snapshot rather than blocking the writer.
func (w *memoryWatcher) send(snapshot []Document) {
	if w.closed {
		return
	}
	for {
		select {
		case w.ch <- snapshot:
			return
		default:
			select {
			case <-w.ch:
			default:
			}
		}
	}
}

func (s *MemoryStore) snapshotLocked(collection string) []Document {
	col := s.collection(collection)
	out := make([]Document, 0, len(col))
	for _, doc := range col {
		out = append(out, doc)
	}
	sortDocuments(out)
	return out
}

func (s *MemoryStore) notifyLocked(collection string) {
	snapshot := s.snapshotLocked(collection)
	for _, w := range s.watchers[collection] {
		w.send(snapshot)
	}
}
