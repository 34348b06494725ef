package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clicker/internal/game"
	"clicker/internal/save"

	"github.com/shopspring/decimal"
)

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *save.MemoryStore, *FakeClock) {
	t.Helper()
	engine := game.NewEngine(nil, nil)
	store := save.NewMemoryStore(engine)
	clk := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewService(store, engine, clk, nil), store, clk
}

func TestNewGamePersists(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	id, d, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if !d.Balance(game.Gold).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected starting gold 1 got %s", d.Balance(game.Gold))
	}
	if _, _, err := store.Load(ctx, id); err != nil {
		t.Fatalf("expected new game in store: %v", err)
	}
}

func TestStateReturnsCopy(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	snap, err := svc.State(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	snap.Currencies[game.Gold] = decimal.NewFromInt(1_000_000)
	snap.Upgrades[game.UpgradeMult].TimesBought = decimal.NewFromInt(9)

	again, err := svc.State(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !again.Balance(game.Gold).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("snapshot mutation leaked into service")
	}
	if !again.Upgrades[game.UpgradeMult].TimesBought.IsZero() {
		t.Fatalf("snapshot upgrade mutation leaked into service")
	}
}

func TestPurchaseFlow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	if _, err := svc.Purchase(ctx, id, game.UpgradeMult); !errors.Is(err, game.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds got %v", err)
	}
	if _, err := svc.Purchase(ctx, id, "bogus"); !errors.Is(err, game.ErrUnknownUpgrade) {
		t.Fatalf("expected ErrUnknownUpgrade got %v", err)
	}

	// 1 gold + 2 gold per second for 1024s.
	if _, err := svc.Tick(ctx, id, 1024*time.Second); err != nil {
		t.Fatalf("tick: %v", err)
	}
	ok, err := svc.CanAfford(ctx, id, game.UpgradeMult)
	if err != nil || !ok {
		t.Fatalf("expected affordable after tick: ok=%v err=%v", ok, err)
	}
	receipt, err := svc.Purchase(ctx, id, game.UpgradeMult)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !receipt.Balance.Equal(decimal.NewFromInt(1025)) {
		t.Fatalf("expected balance 1025 got %s", receipt.Balance)
	}
}

func TestSettleUsesClock(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	clk.Advance(3500 * time.Millisecond)
	res, err := svc.Settle(ctx, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Ticks != 3 || res.Carry != 500 {
		t.Fatalf("unexpected settle result: %+v", res)
	}

	res, err = svc.Settle(ctx, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Ticks != 0 {
		t.Fatalf("expected no ticks without time passing, got %d", res.Ticks)
	}
}

func TestFlushHonoursAutosave(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if _, err := svc.Tick(ctx, id, 10*time.Second); err != nil {
		t.Fatalf("tick: %v", err)
	}

	n, err := svc.Flush(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no flush before interval: n=%d err=%v", n, err)
	}

	clk.Advance(31 * time.Second)
	n, err = svc.Flush(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one flush: n=%d err=%v", n, err)
	}
	stored, _, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !stored.Balance(game.Gold).Equal(decimal.NewFromInt(21)) {
		t.Fatalf("expected stored gold 21 got %s", stored.Balance(game.Gold))
	}

	off := false
	if _, err := svc.UpdateSettings(ctx, id, SettingsPatch{Autosave: &off}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	clk.Advance(time.Minute)
	n, err = svc.Flush(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected autosave disabled: n=%d err=%v", n, err)
	}
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	stored, _, err = store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Settings.Autosave {
		t.Fatalf("expected close to persist settings change")
	}
}

func TestUpdateSettingsValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	short := int64(10)
	if _, err := svc.UpdateSettings(ctx, id, SettingsPatch{AutosaveMillis: &short}); err == nil {
		t.Fatalf("expected short autosave interval to fail")
	}
}

func TestLoadsFromStoreOnMiss(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	fresh := NewService(store, svc.Engine(), nil, nil)
	if _, err := fresh.State(ctx, id); err != nil {
		t.Fatalf("expected load from store: %v", err)
	}
	if err := fresh.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fresh.State(ctx, id); !errors.Is(err, save.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestImport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, d, err := svc.Import(ctx, []byte(`{"gold":"2048","mult":"2","time":1000,"settings":{}}`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !d.Balance(game.Gold).Equal(decimal.NewFromInt(2048)) {
		t.Fatalf("expected imported gold 2048 got %s", d.Balance(game.Gold))
	}
	if _, err := svc.Purchase(ctx, id, game.UpgradeMult); err != nil {
		t.Fatalf("purchase after import: %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := svc.NewGame(ctx)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	var wg sync.WaitGroup
	const workers = 20
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = svc.Tick(ctx, id, time.Second)
				_, _ = svc.State(ctx, id)
			}
		}()
	}
	wg.Wait()

	d, err := svc.State(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !d.Balance(game.Gold).Equal(decimal.NewFromInt(1 + 2*workers*50)) {
		t.Fatalf("expected gold %d got %s", 1+2*workers*50, d.Balance(game.Gold))
	}
}
