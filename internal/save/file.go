package save

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clicker/internal/game"

	"github.com/google/uuid"
)

const currentFile = "current"

// FileStore keeps one JSON file per save in a directory.
type FileStore struct {
	dir    string
	engine *game.Engine

	mu sync.Mutex
}

// DefaultDir is ~/.clicker/saves.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".clicker", "saves"), nil
}

func NewFileStore(dir string, engine *game.Engine) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &FileStore{dir: dir, engine: engine}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *FileStore) Load(ctx context.Context, id uuid.UUID) (*game.GameData, Meta, error) {
	_ = ctx
	path := s.path(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, Meta{}, err
	}
	meta, err := s.meta(id, raw)
	if err != nil {
		return nil, Meta{}, err
	}
	d, err := s.engine.Decode(raw)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("load %s: %w", id, err)
	}
	return d, meta, nil
}

func (s *FileStore) Save(ctx context.Context, id uuid.UUID, d *game.GameData) error {
	_ = ctx
	raw, err := game.Encode(d)
	if err != nil {
		return err
	}
	return s.Put(id, raw)
}

// Put writes raw save bytes, replacing the file atomically.
func (s *FileStore) Put(id uuid.UUID, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(id, raw)
}

func (s *FileStore) put(id uuid.UUID, raw []byte) error {
	path := s.path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Meta, error) {
	_ = ctx
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]Meta, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		meta, err := s.meta(id, raw)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	sortMetas(out)
	return out, nil
}

func (s *FileStore) ListStale(ctx context.Context, before time.Time) ([]Meta, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return staleOnly(all, before), nil
}

// Advance runs fn on the save and writes the result. Writers in this process
// are locked out; a file rewritten by another process in the meantime fails
// with ErrConflict.
func (s *FileStore) Advance(ctx context.Context, id uuid.UUID, fn AdvanceFunc) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	meta, err := s.meta(id, raw)
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
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.ModTime().UTC().Equal(meta.UpdatedAt) {
		return fmt.Errorf("%w: %s", ErrConflict, id)
	}
	return s.put(id, out)
}

func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	if cur, err := s.Current(); err == nil && cur == id {
		_ = os.Remove(filepath.Join(s.dir, currentFile))
	}
	return nil
}

func (s *FileStore) meta(id uuid.UUID, raw []byte) (Meta, error) {
	version, err := game.DetectVersion(raw)
	if err != nil {
		return Meta{}, err
	}
	info, err := os.Stat(s.path(id))
	if err != nil {
		return Meta{}, err
	}
	return Meta{ID: id, Version: version, UpdatedAt: info.ModTime().UTC()}, nil
}

// SetCurrent records the save the CLI plays by default.
func (s *FileStore) SetCurrent(id uuid.UUID) error {
	return os.WriteFile(filepath.Join(s.dir, currentFile), []byte(id.String()), 0o600)
}

func (s *FileStore) Current() (uuid.UUID, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return uuid.Nil, errors.New("no current save, run `clk new` first")
		}
		return uuid.Nil, err
	}
	return uuid.Parse(strings.TrimSpace(string(raw)))
}
