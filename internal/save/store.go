package save

import (
	"context"
	"errors"
	"time"

	"clicker/internal/game"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("save not found")
	ErrConflict = errors.New("save changed while it was being advanced")
)

// Meta describes a stored save without decoding it.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists GameData keyed by save ID. Loads always go through
// game.Engine.Decode, so older layouts come back migrated.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*game.GameData, Meta, error)
	Save(ctx context.Context, id uuid.UUID, d *game.GameData) error
	List(ctx context.Context) ([]Meta, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AdvanceFunc mutates a freshly loaded save in place. Returning an error
// aborts the write and is passed back to the caller.
type AdvanceFunc func(d *game.GameData, meta Meta) error

// StaleLister is a Store that can find saves not written since a given time
// and rewrite one of them without racing concurrent saves. fn must not call
// back into the store.
type StaleLister interface {
	Store
	ListStale(ctx context.Context, before time.Time) ([]Meta, error)
	Advance(ctx context.Context, id uuid.UUID, fn AdvanceFunc) error
}
