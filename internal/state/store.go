package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/catalog-gateway/internal/cache"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache/keys"
)

// Store holds collection metadata and granule hit counts between requests.
// Missing ids are simply absent from the returned map.
type Store interface {
	Collections(ctx context.Context, ids []string) (map[string]CollectionEntry, error)
	PutCollections(ctx context.Context, entries []CollectionEntry) error
	DeleteCollections(ctx context.Context, ids ...string) error
	PutGranuleHits(ctx context.Context, id string, hits int) error
}

// Snapshot loads the entries for ids into a fresh AppState copy.
func Snapshot(ctx context.Context, s Store, st AppState, ids []string) (AppState, error) {
	got, err := s.Collections(ctx, ids)
	if err != nil {
		return st, fmt.Errorf("load collections: %w", err)
	}
	st.Collections = got
	return st, nil
}

type MemoryStore struct {
	lru *expirable.LRU[string, CollectionEntry]
}

// NewMemoryStore keeps at most size entries, each for at most ttl (0 means
// no expiry).
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	return &MemoryStore{lru: expirable.NewLRU[string, CollectionEntry](size, nil, ttl)}
}

func (m *MemoryStore) Collections(_ context.Context, ids []string) (map[string]CollectionEntry, error) {
	out := make(map[string]CollectionEntry, len(ids))
	for _, id := range ids {
		if e, ok := m.lru.Get(id); ok {
			out[id] = e
		}
	}
	return out, nil
}

func (m *MemoryStore) PutCollections(_ context.Context, entries []CollectionEntry) error {
	for _, e := range entries {
		if e.Metadata.ID == "" {
			continue
		}
		if prev, ok := m.lru.Peek(e.Metadata.ID); ok && e.Granules.Hits == 0 {
			e.Granules = prev.Granules
		}
		m.lru.Add(e.Metadata.ID, e)
	}
	return nil
}

func (m *MemoryStore) DeleteCollections(_ context.Context, ids ...string) error {
	for _, id := range ids {
		m.lru.Remove(id)
	}
	return nil
}

func (m *MemoryStore) PutGranuleHits(_ context.Context, id string, hits int) error {
	e, ok := m.lru.Peek(id)
	if !ok {
		return nil
	}
	e.Granules.Hits = hits
	m.lru.Add(id, e)
	return nil
}

func (m *MemoryStore) Len() int { return m.lru.Len() }

// RedisStore persists entries as JSON under keys.Collection and hit counts
// under keys.GranuleHits.
type RedisStore struct {
	kv  cache.Interface
	ttl time.Duration
}

func NewRedisStore(kv cache.Interface, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

func (r *RedisStore) Collections(ctx context.Context, ids []string) (map[string]CollectionEntry, error) {
	if len(ids) == 0 {
		return map[string]CollectionEntry{}, nil
	}
	ks := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		ks = append(ks, keys.Collection(id), keys.GranuleHits(id))
	}
	raw, err := r.kv.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("collections mget: %w", err)
	}

	out := make(map[string]CollectionEntry, len(ids))
	for _, id := range ids {
		b, ok := raw[keys.Collection(id)]
		if !ok {
			continue
		}
		var e CollectionEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode collection %s: %w", id, err)
		}
		if hb, ok := raw[keys.GranuleHits(id)]; ok {
			if n, err := strconv.Atoi(string(hb)); err == nil {
				e.Granules.Hits = n
			}
		}
		out[id] = e
	}
	return out, nil
}

// batchSetter is implemented by clients that can write many keys in one
// round trip.
type batchSetter interface {
	MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
}

func (r *RedisStore) PutCollections(ctx context.Context, entries []CollectionEntry) error {
	var errs []error
	batch := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.Metadata.ID == "" {
			continue
		}
		b, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode collection %s: %w", e.Metadata.ID, err))
			continue
		}
		batch[keys.Collection(e.Metadata.ID)] = b
	}
	if bs, ok := r.kv.(batchSetter); ok {
		if err := bs.MSetWithTTL(ctx, batch, r.ttl); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	for k, b := range batch {
		if err := r.kv.Set(ctx, k, b, r.ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *RedisStore) DeleteCollections(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ks := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		ks = append(ks, keys.Collection(id), keys.GranuleHits(id))
	}
	if err := r.kv.Del(ctx, ks...); err != nil {
		return fmt.Errorf("delete collections: %w", err)
	}
	return nil
}

func (r *RedisStore) PutGranuleHits(ctx context.Context, id string, hits int) error {
	return r.kv.Set(ctx, keys.GranuleHits(id), []byte(strconv.Itoa(hits)), r.ttl)
}

// Tiered reads through an in-process LRU in front of a shared store. A
// failing back store degrades to whatever the front tier holds.
type Tiered struct {
	front  *MemoryStore
	back   Store
	logger *slog.Logger
}

func NewTiered(front *MemoryStore, back Store, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{front: front, back: back, logger: logger}
}

func (t *Tiered) Collections(ctx context.Context, ids []string) (map[string]CollectionEntry, error) {
	out, _ := t.front.Collections(ctx, ids)
	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	got, err := t.back.Collections(ctx, missing)
	if err != nil {
		t.logger.WarnContext(ctx, "metadata store read failed; serving front tier only",
			"missing", len(missing), "err", err)
		return out, nil
	}
	fill := make([]CollectionEntry, 0, len(got))
	for id, e := range got {
		out[id] = e
		fill = append(fill, e)
	}
	_ = t.front.PutCollections(ctx, fill)
	return out, nil
}

func (t *Tiered) PutCollections(ctx context.Context, entries []CollectionEntry) error {
	_ = t.front.PutCollections(ctx, entries)
	return t.back.PutCollections(ctx, entries)
}

func (t *Tiered) DeleteCollections(ctx context.Context, ids ...string) error {
	_ = t.front.DeleteCollections(ctx, ids...)
	return t.back.DeleteCollections(ctx, ids...)
}

func (t *Tiered) PutGranuleHits(ctx context.Context, id string, hits int) error {
	_ = t.front.PutGranuleHits(ctx, id, hits)
	return t.back.PutGranuleHits(ctx, id, hits)
}
