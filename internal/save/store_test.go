package save

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clicker/internal/game"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*PGStore)(nil)
)

func playedGame(t *testing.T, e *game.Engine) *game.GameData {
	t.Helper()
	d := e.Initialize()
	d.Currencies[game.Gold] = decimal.NewFromInt(5000)
	_, err := e.Purchase(d, game.UpgradeMult)
	require.NoError(t, err)
	return d
}

func testStoreRoundTrip(t *testing.T, s Store, e *game.Engine) {
	ctx := context.Background()
	id := uuid.New()
	d := playedGame(t, e)

	require.NoError(t, s.Save(ctx, id, d))

	got, meta, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, game.SchemaVersion, meta.Version)
	assert.True(t, got.Equal(d), "loaded save differs from saved one")

	got.Currencies[game.Gold] = decimal.Zero
	again, _, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.Balance(game.Gold).Equal(decimal.NewFromInt(3976)))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	require.NoError(t, s.Delete(ctx, id))
	_, _, err = s.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	e := game.NewEngine(nil, nil)
	testStoreRoundTrip(t, NewMemoryStore(e), e)
}

func TestFileStoreRoundTrip(t *testing.T) {
	e := game.NewEngine(nil, nil)
	s, err := NewFileStore(t.TempDir(), e)
	require.NoError(t, err)
	testStoreRoundTrip(t, s, e)
}

func TestMemoryStoreMigratesOldSaves(t *testing.T) {
	e := game.NewEngine(nil, nil)
	s := NewMemoryStore(e)
	id := uuid.New()
	require.NoError(t, s.Put(id, []byte(`{"gold":"4096","mult":"2","upgrades":{"upgrademult":{"cost":"1024","timesBought":"0"}},"time":1000,"settings":{}}`)))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Version)

	d, _, err := s.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, game.SchemaVersion, d.Version)
	assert.True(t, d.Balance(game.Gold).Equal(decimal.NewFromInt(4096)))
}

func TestFileStoreCurrentAndSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	e := game.NewEngine(nil, nil)
	s, err := NewFileStore(dir, e)
	require.NoError(t, err)

	_, err = s.Current()
	assert.Error(t, err)

	id := uuid.New()
	require.NoError(t, s.Save(context.Background(), id, e.Initialize()))
	require.NoError(t, s.SetCurrent(id))
	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, id, cur)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(context.Background(), id))
	_, err = s.Current()
	assert.Error(t, err)
}

var (
	_ StaleLister = (*MemoryStore)(nil)
	_ StaleLister = (*FileStore)(nil)
	_ StaleLister = (*PGStore)(nil)
)

func TestMemoryStoreListStale(t *testing.T) {
	e := game.NewEngine(nil, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(e).WithClock(func() time.Time { return now })
	ctx := context.Background()

	old := uuid.New()
	require.NoError(t, s.Save(ctx, old, e.Initialize()))
	now = now.Add(time.Hour)
	recent := uuid.New()
	require.NoError(t, s.Save(ctx, recent, e.Initialize()))

	stale, err := s.ListStale(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old, stale[0].ID)
}

func testStoreAdvance(t *testing.T, s StaleLister, e *game.Engine) {
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, s.Save(ctx, id, playedGame(t, e)))

	require.NoError(t, s.Advance(ctx, id, func(d *game.GameData, meta Meta) error {
		assert.Equal(t, id, meta.ID)
		e.Tick(d, 3*time.Second)
		return nil
	}))
	got, _, err := s.Load(ctx, id)
	require.NoError(t, err)
	// mult is 4 after the purchase in playedGame.
	assert.True(t, got.Balance(game.Gold).Equal(decimal.NewFromInt(3988)))
	assert.True(t, got.Upgrades[game.UpgradeMult].TimesBought.Equal(decimal.NewFromInt(1)))

	stop := errors.New("stop")
	err = s.Advance(ctx, id, func(d *game.GameData, _ Meta) error {
		d.Currencies[game.Gold] = decimal.Zero
		return stop
	})
	assert.ErrorIs(t, err, stop)
	got, _, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Balance(game.Gold).Equal(decimal.NewFromInt(3988)), "aborted advance must not write")

	err = s.Advance(ctx, uuid.New(), func(*game.GameData, Meta) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAdvance(t *testing.T) {
	e := game.NewEngine(nil, nil)
	testStoreAdvance(t, NewMemoryStore(e), e)
}

func TestFileStoreAdvance(t *testing.T) {
	e := game.NewEngine(nil, nil)
	s, err := NewFileStore(t.TempDir(), e)
	require.NoError(t, err)
	testStoreAdvance(t, s, e)
}
