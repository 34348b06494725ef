package save

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clicker/internal/game"

	"github.com/google/uuid"
)

type memoryEntry struct {
	raw  []byte
	meta Meta
}

// MemoryStore keeps encoded saves, so callers never share GameData with it.
type MemoryStore struct {
	mu     sync.RWMutex
	engine *game.Engine
	now    func() time.Time
	saves  map[uuid.UUID]memoryEntry
}

func NewMemoryStore(engine *game.Engine) *MemoryStore {
	return &MemoryStore{
		engine: engine,
		now:    time.Now,
		saves:  make(map[uuid.UUID]memoryEntry),
	}
}

// WithClock replaces the time source used for UpdatedAt stamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*game.GameData, Meta, error) {
	_ = ctx
	s.mu.RLock()
	entry, ok := s.saves[id]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d, err := s.engine.Decode(entry.raw)
	if err != nil {
		return nil, Meta{}, err
	}
	return d, entry.meta, nil
}

func (s *MemoryStore) Save(ctx context.Context, id uuid.UUID, d *game.GameData) error {
	_ = ctx
	raw, err := game.Encode(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[id] = memoryEntry{
		raw:  raw,
		meta: Meta{ID: id, Version: game.SchemaVersion, UpdatedAt: s.now().UTC()},
	}
	return nil
}

// Put stores raw bytes as-is. Used to seed older save layouts.
func (s *MemoryStore) Put(id uuid.UUID, raw []byte) error {
	version, err := game.DetectVersion(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[id] = memoryEntry{
		raw:  append([]byte(nil), raw...),
		meta: Meta{ID: id, Version: version, UpdatedAt: s.now().UTC()},
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Meta, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Meta, 0, len(s.saves))
	for _, e := range s.saves {
		out = append(out, e.meta)
	}
	sortMetas(out)
	return out, nil
}

func (s *MemoryStore) ListStale(ctx context.Context, before time.Time) ([]Meta, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return staleOnly(all, before), nil
}

// Advance runs fn on the stored save and writes the result while holding the
// store lock, so no Save can land in between.
func (s *MemoryStore) Advance(ctx context.Context, id uuid.UUID, fn AdvanceFunc) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.saves[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d, err := s.engine.Decode(entry.raw)
	if err != nil {
		return err
	}
	if err := fn(d, entry.meta); err != nil {
		return err
	}
	raw, err := game.Encode(d)
	if err != nil {
		return err
	}
	s.saves[id] = memoryEntry{
		raw:  raw,
		meta: Meta{ID: id, Version: game.SchemaVersion, UpdatedAt: s.now().UTC()},
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saves[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.saves, id)
	return nil
}

func staleOnly(metas []Meta, before time.Time) []Meta {
	out := metas[:0]
	for _, m := range metas {
		if m.UpdatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out
}

func sortMetas(metas []Meta) {
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].ID.String() < metas[j].ID.String()
		}
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
}
