package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clicker/internal/game"
	"clicker/internal/save"

	"github.com/google/uuid"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

var ErrInvalidSettings = errors.New("invalid settings")

type entry struct {
	data       *game.GameData
	dirty      bool
	lastSettle time.Time
	lastSave   time.Time
}

// Service owns the live GameData of every open save. A single mutex serialises
// all mutations, so each game has exactly one writer at a time.
type Service struct {
	store  save.Store
	engine *game.Engine
	log    *slog.Logger
	clk    Clock

	mu    sync.Mutex
	games map[uuid.UUID]*entry
}

func NewService(store save.Store, engine *game.Engine, clk Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = game.NewEngine(nil, logger)
	}
	if clk == nil {
		clk = RealClock{}
	}
	return &Service{
		store:  store,
		engine: engine,
		log:    logger,
		clk:    clk,
		games:  make(map[uuid.UUID]*entry),
	}
}

func (s *Service) Engine() *game.Engine {
	return s.engine
}

func (s *Service) NewGame(ctx context.Context) (uuid.UUID, *game.GameData, error) {
	id := uuid.New()
	d := s.engine.Initialize()
	if err := s.store.Save(ctx, id, d); err != nil {
		return uuid.Nil, nil, fmt.Errorf("save new game: %w", err)
	}
	now := s.clk.Now()
	s.mu.Lock()
	s.games[id] = &entry{data: d, lastSettle: now, lastSave: now}
	s.mu.Unlock()
	s.log.Info("new game", "save_id", id)
	return id, d.Clone(), nil
}

// get returns the live entry, loading it from the store on a miss.
// Callers hold s.mu.
func (s *Service) get(ctx context.Context, id uuid.UUID) (*entry, error) {
	if e, ok := s.games[id]; ok {
		return e, nil
	}
	d, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	e := &entry{data: d, lastSettle: now, lastSave: now}
	if d.Settings.OfflineProgress && !meta.UpdatedAt.IsZero() && meta.UpdatedAt.Before(now) {
		e.lastSettle = meta.UpdatedAt
	}
	s.games[id] = e
	return e, nil
}

func (s *Service) State(ctx context.Context, id uuid.UUID) (*game.GameData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.data.Clone(), nil
}

func (s *Service) Upgrades(ctx context.Context, id uuid.UUID) ([]game.UpgradeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Upgrades(e.data), nil
}

func (s *Service) CanAfford(ctx context.Context, id uuid.UUID, name game.UpgradeName) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.engine.CanAfford(e.data, name)
}

func (s *Service) Purchase(ctx context.Context, id uuid.UUID, name game.UpgradeName) (game.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return game.Receipt{}, err
	}
	receipt, err := s.engine.Purchase(e.data, name)
	if err != nil {
		if errors.Is(err, game.ErrUnknownUpgrade) {
			s.log.Warn("purchase of unknown upgrade ignored", "save_id", id, "upgrade", name)
		}
		return game.Receipt{}, err
	}
	e.dirty = true
	return receipt, nil
}

func (s *Service) Tick(ctx context.Context, id uuid.UUID, elapsed time.Duration) (game.TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return game.TickResult{}, err
	}
	res := s.engine.Tick(e.data, elapsed)
	if elapsed > 0 {
		e.dirty = true
	}
	return res, nil
}

// Settle ticks a game by the wall-clock time since its previous settle.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (game.TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return game.TickResult{}, err
	}
	now := s.clk.Now()
	elapsed := now.Sub(e.lastSettle)
	e.lastSettle = now
	res := s.engine.Tick(e.data, elapsed)
	if elapsed > 0 {
		e.dirty = true
	}
	return res, nil
}

// SettingsPatch changes only the fields that are set.
type SettingsPatch struct {
	Autosave        *bool  `json:"autosave,omitempty"`
	AutosaveMillis  *int64 `json:"autosave_ms,omitempty"`
	OfflineProgress *bool  `json:"offline_progress,omitempty"`
}

func (s *Service) UpdateSettings(ctx context.Context, id uuid.UUID, patch SettingsPatch) (game.Settings, error) {
	if patch.AutosaveMillis != nil && *patch.AutosaveMillis < game.MinAutosaveMillis {
		return game.Settings{}, fmt.Errorf("%w: autosave interval must be at least %dms", ErrInvalidSettings, game.MinAutosaveMillis)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return game.Settings{}, err
	}
	st := &e.data.Settings
	if patch.Autosave != nil {
		st.Autosave = *patch.Autosave
	}
	if patch.AutosaveMillis != nil {
		st.AutosaveMillis = *patch.AutosaveMillis
	}
	if patch.OfflineProgress != nil {
		st.OfflineProgress = *patch.OfflineProgress
	}
	e.dirty = true
	return *st, nil
}

func (s *Service) Save(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	return s.persist(ctx, id, e)
}

func (s *Service) persist(ctx context.Context, id uuid.UUID, e *entry) error {
	if err := s.store.Save(ctx, id, e.data); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	e.dirty = false
	e.lastSave = s.clk.Now()
	return nil
}

// Flush writes every dirty game whose autosave is enabled and due. It returns
// how many games were written.
func (s *Service) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	saved := 0
	var errs []error
	for id, e := range s.games {
		if !e.dirty || !e.data.Settings.Autosave {
			continue
		}
		if now.Sub(e.lastSave) < e.data.Settings.AutosaveEvery() {
			continue
		}
		if err := s.persist(ctx, id, e); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// Close saves every dirty game regardless of autosave settings.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, e := range s.games {
		if !e.dirty {
			continue
		}
		if err := s.persist(ctx, id, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return s.store.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]save.Meta, error) {
	return s.store.List(ctx)
}

// Import stores externally produced save bytes under a new ID.
func (s *Service) Import(ctx context.Context, raw []byte) (uuid.UUID, *game.GameData, error) {
	d, err := s.engine.Decode(raw)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	if err := s.store.Save(ctx, id, d); err != nil {
		return uuid.Nil, nil, fmt.Errorf("save imported game: %w", err)
	}
	now := s.clk.Now()
	s.mu.Lock()
	s.games[id] = &entry{data: d, lastSettle: now, lastSave: now}
	s.mu.Unlock()
	return id, d.Clone(), nil
}
