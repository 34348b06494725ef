package game

import (
	"sort"
	"time"
)

// GameData is the persisted root of a play session.
type GameData struct {
	Version    int                           `json:"version"`
	Currencies map[CurrencyName]Amount       `json:"currencies"`
	Mult       Amount                        `json:"mult"`
	Upgrades   map[UpgradeName]*UpgradeState `json:"upgrades"`
	Time       int64                         `json:"time"`
	TickCarry  int64                         `json:"tick_carry"`
	Settings   Settings                      `json:"settings"`
}

// UpgradeState is the persisted half of an upgrade. Effects live in the Registry.
type UpgradeState struct {
	Cost        Amount `json:"cost"`
	TimesBought Amount `json:"timesBought"`
}

type Settings struct {
	Autosave        bool  `json:"autosave"`
	AutosaveMillis  int64 `json:"autosave_ms"`
	OfflineProgress bool  `json:"offline_progress"`
}

func DefaultSettings() Settings {
	return Settings{
		Autosave:        true,
		AutosaveMillis:  DefaultAutosaveMillis,
		OfflineProgress: true,
	}
}

func (s Settings) AutosaveEvery() time.Duration {
	return time.Duration(s.AutosaveMillis) * time.Millisecond
}

func (d *GameData) TickInterval() time.Duration {
	return time.Duration(d.Time) * time.Millisecond
}

func (d *GameData) Balance(c CurrencyName) Amount {
	return d.Currencies[c]
}

// Clone returns a copy sharing no maps or upgrade records with d.
func (d *GameData) Clone() *GameData {
	if d == nil {
		return nil
	}
	out := *d
	out.Currencies = make(map[CurrencyName]Amount, len(d.Currencies))
	for k, v := range d.Currencies {
		out.Currencies[k] = v
	}
	out.Upgrades = make(map[UpgradeName]*UpgradeState, len(d.Upgrades))
	for k, v := range d.Upgrades {
		if v == nil {
			continue
		}
		u := *v
		out.Upgrades[k] = &u
	}
	return &out
}

// Equal compares logical values: decimals by value, not by representation.
func (d *GameData) Equal(o *GameData) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Version != o.Version || d.Time != o.Time || d.TickCarry != o.TickCarry || d.Settings != o.Settings {
		return false
	}
	if !d.Mult.Equal(o.Mult) || len(d.Currencies) != len(o.Currencies) || len(d.Upgrades) != len(o.Upgrades) {
		return false
	}
	for k, v := range d.Currencies {
		ov, ok := o.Currencies[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for k, v := range d.Upgrades {
		ov, ok := o.Upgrades[k]
		if !ok || v == nil || ov == nil {
			return false
		}
		if !v.Cost.Equal(ov.Cost) || !v.TimesBought.Equal(ov.TimesBought) {
			return false
		}
	}
	return true
}

func (d *GameData) UpgradeNames() []UpgradeName {
	out := make([]UpgradeName, 0, len(d.Upgrades))
	for name := range d.Upgrades {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Receipt describes a completed purchase.
type Receipt struct {
	Upgrade     UpgradeName  `json:"upgrade"`
	Currency    CurrencyName `json:"currency"`
	Paid        Amount       `json:"paid"`
	Balance     Amount       `json:"balance"`
	TimesBought Amount       `json:"times_bought"`
	NextCost    Amount       `json:"next_cost"`
}

type TickResult struct {
	Ticks    int64        `json:"ticks"`
	Currency CurrencyName `json:"currency"`
	Earned   Amount       `json:"earned"`
	Balance  Amount       `json:"balance"`
	Carry    int64        `json:"carry_ms"`
}

type UpgradeView struct {
	Name        UpgradeName  `json:"name"`
	Currency    CurrencyName `json:"currency"`
	Cost        Amount       `json:"cost"`
	TimesBought Amount       `json:"times_bought"`
	Affordable  bool         `json:"affordable"`
	Dynamic     bool         `json:"dynamic_cost"`
}
