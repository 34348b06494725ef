package game

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateName(t *testing.T) {
	valid := []string{"gold", "upgrademult", "tier2"}
	for _, s := range valid {
		if err := ValidateName(s); err != nil {
			t.Fatalf("expected name %q to be valid: %v", s, err)
		}
	}

	invalid := []string{"", "Gold", "upgrade_mult", "a-b", "abcdefghijklmnopqrstuvwxyz0123456789"}
	for _, s := range invalid {
		if err := ValidateName(s); err == nil {
			t.Fatalf("expected name %q to fail", s)
		}
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1e9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1_000_000_000)) {
		t.Fatalf("got %s want 1000000000", got)
	}
	if _, err := ParseAmount("lots"); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestExponentialCost(t *testing.T) {
	cost := ExponentialCost(decimal.NewFromInt(10), decimal.NewFromFloat(1.5))
	tests := []struct {
		n    int64
		want string
	}{
		{n: 0, want: "10"},
		{n: 1, want: "15"},
		{n: 2, want: "22.5"},
	}
	for _, tc := range tests {
		got := cost(decimal.NewFromInt(tc.n))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("n=%d got=%s want=%s", tc.n, got, tc.want)
		}
	}
}

func TestRoundCost(t *testing.T) {
	v := decimal.RequireFromString("22.5")
	if got := RoundCost(v, nil); !got.Equal(v) {
		t.Fatalf("nil rounding changed value: %s", got)
	}
	places := int32(0)
	if got := RoundCost(v, &places); !got.Equal(decimal.NewFromInt(23)) {
		t.Fatalf("got %s want 23", got)
	}
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	r := NewRegistry(Gold, decimal.NewFromInt(1), 0)
	if err := r.AddCurrency(CurrencyDef{Name: Gold, Start: decimal.Zero}); err != nil {
		t.Fatalf("add currency: %v", err)
	}
	if err := r.AddCurrency(CurrencyDef{Name: Gold}); err == nil {
		t.Fatalf("expected duplicate currency to fail")
	}
	err := r.AddUpgrade(UpgradeDef{Name: "warp", Currency: "space", BaseCost: decimal.NewFromInt(1)})
	if !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
	if err := r.AddUpgrade(UpgradeDef{Name: "warp", Currency: Gold, BaseCost: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("add upgrade: %v", err)
	}
	if err := r.AddUpgrade(UpgradeDef{Name: "warp", Currency: Gold}); err == nil {
		t.Fatalf("expected duplicate upgrade to fail")
	}
	if got := r.NewData().Time; got != DefaultTickMillis {
		t.Fatalf("expected default tick %d got %d", DefaultTickMillis, got)
	}
}

func TestShortenTickFloor(t *testing.T) {
	d := &GameData{Time: 55}
	ShortenTick(d, UpgradeTime)
	if d.Time != MinTickMillis {
		t.Fatalf("expected floor %d got %d", MinTickMillis, d.Time)
	}
}
