package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the JetStream-backed store.
type NATSConfig struct {
	URL           string
	BucketPrefix  string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the settings used by local deployments.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		BucketPrefix:  "drawdeck",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSStore implements Store on top of one JetStream KeyValue bucket per
// collection. Watches are revision-ordered per subscriber; cross-subscriber
// ordering is not guaranteed, which the coordination core tolerates.
type NATSStore struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config NATSConfig

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
}

// NewNATSStore connects to NATS and prepares a JetStream context.
func NewNATSStore(cfg NATSConfig) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &NATSStore{
		nc:      nc,
		js:      js,
		config:  cfg,
		buckets: make(map[string]jetstream.KeyValue),
	}, nil
}

// Close drains the underlying connection.
func (s *NATSStore) Close() {
	s.nc.Close()
}

func (s *NATSStore) bucket(ctx context.Context, collection string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[collection]; ok {
		return kv, nil
	}
	kv, err := s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: fmt.Sprintf("%s-%s", s.config.BucketPrefix, collection),
	})
	if err != nil {
		return nil, classify("open bucket", err)
	}
	s.buckets[collection] = kv
	return kv, nil
}

func (s *NATSStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	raw, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	if _, err := kv.Put(ctx, id, raw); err != nil {
		return "", classify("add", err)
	}
	return id, nil
}

func (s *NATSStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.merge(ctx, collection, id, fields, false)
}

func (s *NATSStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.merge(ctx, collection, id, fields, true)
}

func (s *NATSStore) merge(ctx context.Context, collection, id string, fields map[string]any, createMissing bool) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}

	var existing []byte
	entry, err := kv.Get(ctx, id)
	switch {
	case err == nil:
		existing = entry.Value()
	case errors.Is(err, jetstream.ErrKeyNotFound):
		if !createMissing {
			return ErrNotFound
		}
	default:
		return classify("get", err)
	}

	merged, err := mergeFields(existing, fields)
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, id, merged); err != nil {
		return classify("update", err)
	}
	return nil
}

func (s *NATSStore) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, id, raw); err != nil {
		return classify("set", err)
	}
	return nil
}

func (s *NATSStore) Get(ctx context.Context, collection, id string) (Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return Document{}, err
	}
	entry, err := kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, classify("get", err)
	}
	return documentFromEntry(entry), nil
}

func (s *NATSStore) List(ctx context.Context, collection string) ([]Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, classify("list keys", err)
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		entry, err := kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, classify("list get", err)
		}
		docs = append(docs, documentFromEntry(entry))
	}
	sortDocuments(docs)
	return docs, nil
}

func (s *NATSStore) Remove(ctx context.Context, collection, id string) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	if _, err := kv.Get(ctx, id); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return classify("get", err)
	}
	if err := kv.Delete(ctx, id); err != nil {
		return classify("remove", err)
	}
	return nil
}

func (s *NATSStore) RemoveMany(ctx context.Context, collection string, ids []string) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := kv.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return classify("remove many", err)
		}
	}
	return nil
}

func (s *NATSStore) Clear(ctx context.Context, collection string) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return classify("clear keys", err)
	}
	for _, key := range keys {
		if err := kv.Purge(ctx, key); err != nil {
			return classify("clear", err)
		}
	}
	return nil
}

func (s *NATSStore) Watch(ctx context.Context, collection string) (<-chan []Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	watcher, err := kv.WatchAll(ctx)
	if err != nil {
		return nil, classify("watch", err)
	}

	out := make(chan []Document, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Str("collection", collection).Msg("stopping KV watcher")
			}
		}()

		current := make(map[string]Document)
		initial := true
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					// End of initial values: publish the first snapshot.
					initial = false
					sendSnapshot(out, snapshotMap(current))
					continue
				}
				switch entry.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					delete(current, entry.Key())
				default:
					current[entry.Key()] = Document{
						ID:        entry.Key(),
						Data:      entry.Value(),
						UpdatedAt: entry.Created(),
					}
				}
				if !initial {
					sendSnapshot(out, snapshotMap(current))
				}
			}
		}
	}()
	return out, nil
}

func documentFromEntry(entry jetstream.KeyValueEntry) Document {
	return Document{
		ID:        entry.Key(),
		Data:      entry.Value(),
		UpdatedAt: entry.Created(),
	}
}

func snapshotMap(m map[string]Document) []Document {
	out := make([]Document, 0, len(m))
	for _, doc := range m {
		out = append(out, doc)
	}
	sortDocuments(out)
	return out
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
	})
}

// sendSnapshot conflates pending snapshots so a slow consumer only ever lags
// by one full snapshot, never blocks the watch loop.
func sendSnapshot(ch chan []Document, snapshot []Document) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, context.DeadlineExceeded):
		return Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
