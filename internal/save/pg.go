package save

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clicker/internal/game"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps saves in game.saves as jsonb.
type PGStore struct {
	db     *pgxpool.Pool
	engine *game.Engine
}

func NewPGStore(db *pgxpool.Pool, engine *game.Engine) *PGStore {
	return &PGStore{db: db, engine: engine}
}

func (s *PGStore) Load(ctx context.Context, id uuid.UUID) (*game.GameData, Meta, error) {
	var raw []byte
	meta := Meta{ID: id}
	err := s.db.QueryRow(ctx, `
		SELECT version, data, updated_at
		FROM game.saves
		WHERE id = $1
	`, id).Scan(&meta.Version, &raw, &meta.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, Meta{}, err
	}
	d, err := s.engine.Decode(raw)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("load %s: %w", id, err)
	}
	return d, meta, nil
}

func (s *PGStore) Save(ctx context.Context, id uuid.UUID, d *game.GameData) error {
	raw, err := game.Encode(d)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO game.saves (id, version, data, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, data = EXCLUDED.data, updated_at = now()
	`, id, game.SchemaVersion, raw)
	return err
}

// Advance locks the row, applies fn and writes it back in one serializable
// transaction, so a concurrent Save either lands first and is seen by fn or
// waits for the commit.
func (s *PGStore) Advance(ctx context.Context, id uuid.UUID, fn AdvanceFunc) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	meta := Meta{ID: id}
	err = tx.QueryRow(ctx, `
		SELECT version, data, updated_at
		FROM game.saves
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&meta.Version, &raw, &meta.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	d, err := s.engine.Decode(raw)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	if err := fn(d, meta); err != nil {
		return err
	}
	out, err := game.Encode(d)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE game.saves
		SET version = $2, data = $3, updated_at = now()
		WHERE id = $1
	`, id, game.SchemaVersion, out); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) List(ctx context.Context) ([]Meta, error) {
	return s.query(ctx, `
		SELECT id, version, updated_at
		FROM game.saves
		ORDER BY updated_at DESC, id
	`)
}

// ListStale returns saves whose last write is older than before.
func (s *PGStore) ListStale(ctx context.Context, before time.Time) ([]Meta, error) {
	return s.query(ctx, `
		SELECT id, version, updated_at
		FROM game.saves
		WHERE updated_at < $1
		ORDER BY updated_at
	`, before)
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := s.db.Exec(ctx, `DELETE FROM game.saves WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]Meta, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Meta, 0, 16)
	for rows.Next() {
		var m Meta
		if err := rows.Scan(&m.ID, &m.Version, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
