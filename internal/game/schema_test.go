package game

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := NewEngine(nil, nil)
	d := e.Initialize()
	d.Currencies[Gold] = dec(2048)
	if _, err := e.Purchase(d, UpgradeMult); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	e.Tick(d, 1700*time.Millisecond)
	d.Settings.Autosave = false

	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := e.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(d) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestEncodeUsesDecimalStrings(t *testing.T) {
	raw, err := Encode(DefaultData())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, `"upgrademult":{"cost":"1024","timesBought":"0"}`) {
		t.Fatalf("unexpected encoding: %s", s)
	}
	if !strings.Contains(s, `"version":2`) {
		t.Fatalf("missing version: %s", s)
	}
}

func TestDecodeV1Save(t *testing.T) {
	raw := []byte(`{
		"upgrades": {
			"upgrademult": {"cost": "1024", "timesBought": "3"},
			"retired": {"cost": "5", "timesBought": "1"}
		},
		"mult": "16",
		"gold": "1e6",
		"time": 1000,
		"settings": {}
	}`)
	e := NewEngine(nil, nil)
	d, err := e.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Version != SchemaVersion {
		t.Fatalf("expected migrated version %d got %d", SchemaVersion, d.Version)
	}
	if !d.Balance(Gold).Equal(dec(1_000_000)) {
		t.Fatalf("expected gold 1e6 got %s", d.Balance(Gold))
	}
	if !d.Mult.Equal(dec(16)) {
		t.Fatalf("expected mult 16 got %s", d.Mult)
	}
	if !d.Upgrades[UpgradeMult].TimesBought.Equal(dec(3)) {
		t.Fatalf("expected timesBought 3 got %s", d.Upgrades[UpgradeMult].TimesBought)
	}
	if _, ok := d.Upgrades["retired"]; ok {
		t.Fatalf("expected unknown upgrade to be dropped")
	}
	if u := d.Upgrades[UpgradeTime]; u == nil || !u.Cost.Equal(dec(1_000_000_000)) {
		t.Fatalf("expected missing upgradetime filled from defaults")
	}
	if d.Settings != DefaultSettings() {
		t.Fatalf("expected default settings got %+v", d.Settings)
	}
}

func TestDecodeDefaultsAndClamps(t *testing.T) {
	raw := []byte(`{"version":2,"currencies":{"gold":"-5","space":"3"},"time":0,"tick_carry":5000,"settings":{"autosave":false}}`)
	e := NewEngine(nil, nil)
	d, err := e.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Balance(Gold).IsZero() {
		t.Fatalf("expected negative balance clamped to 0 got %s", d.Balance(Gold))
	}
	if _, ok := d.Currencies["space"]; ok {
		t.Fatalf("expected unknown currency dropped")
	}
	if d.Time != DefaultTickMillis || d.TickCarry != 0 {
		t.Fatalf("expected default time and zero carry, got time=%d carry=%d", d.Time, d.TickCarry)
	}
	if !d.Mult.Equal(dec(2)) {
		t.Fatalf("expected default mult got %s", d.Mult)
	}
	if d.Settings.Autosave || !d.Settings.OfflineProgress || d.Settings.AutosaveMillis != DefaultAutosaveMillis {
		t.Fatalf("unexpected settings: %+v", d.Settings)
	}
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	e := NewEngine(nil, nil)
	if _, err := e.Decode([]byte(`{"version":99}`)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion got %v", err)
	}
	if _, err := e.Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected malformed save to fail")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := DefaultData()
	c := d.Clone()
	c.Upgrades[UpgradeMult].TimesBought = dec(5)
	c.Currencies[Gold] = dec(5)
	if !d.Upgrades[UpgradeMult].TimesBought.IsZero() || !d.Balance(Gold).Equal(dec(1)) {
		t.Fatalf("clone aliases original")
	}
	if !d.Equal(DefaultData()) {
		t.Fatalf("expected original to equal defaults")
	}
}

func TestDecodeRejectsInvalidSaves(t *testing.T) {
	e := NewEngine(nil, nil)
	for _, raw := range []string{
		``,
		`null`,
		`[]`,
		`"save"`,
		`not json`,
		`{"version":"2"}`,
		`{"gold":"abc"}`,
		`{"version":2,"currencies":{"gold":"abc"}}`,
		`{"version":2,"upgrades":[]}`,
	} {
		if _, err := e.Decode([]byte(raw)); !errors.Is(err, ErrInvalidSave) {
			t.Fatalf("%q: expected ErrInvalidSave got %v", raw, err)
		}
	}
	if _, err := e.Decode([]byte("  \n{\"gold\":\"3\"}")); err != nil {
		t.Fatalf("leading whitespace should be accepted: %v", err)
	}
}

func TestDecodeFloorsAutosaveInterval(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decode([]byte(`{"version":2,"settings":{"autosave_ms":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Settings.AutosaveMillis != MinAutosaveMillis {
		t.Fatalf("expected autosave floored to %d got %d", MinAutosaveMillis, d.Settings.AutosaveMillis)
	}
	d, err = e.Decode([]byte(`{"version":2,"settings":{"autosave_ms":45000}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Settings.AutosaveMillis != 45000 {
		t.Fatalf("expected 45000 got %d", d.Settings.AutosaveMillis)
	}
}
