package game

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Save layouts:
//
//	v1: {"gold":..,"mult":..,"upgrades":{name:{cost,timesBought}},"time":..,"settings":{}}
//	v2: {"version":2,"currencies":{name:..},"mult":..,"upgrades":..,"time":..,"tick_carry":..,"settings":{..}}
//
// v1 carries no version field.

type upgradeWire struct {
	Cost        *Amount `json:"cost"`
	TimesBought *Amount `json:"timesBought"`
}

type settingsWire struct {
	Autosave        *bool  `json:"autosave"`
	AutosaveMillis  *int64 `json:"autosave_ms"`
	OfflineProgress *bool  `json:"offline_progress"`
}

type saveV1 struct {
	Gold     *Amount                     `json:"gold"`
	Mult     *Amount                     `json:"mult"`
	Upgrades map[UpgradeName]upgradeWire `json:"upgrades"`
	Time     int64                       `json:"time"`
	Settings *settingsWire               `json:"settings"`
}

type saveV2 struct {
	Version    int                         `json:"version"`
	Currencies map[CurrencyName]Amount     `json:"currencies"`
	Mult       *Amount                     `json:"mult"`
	Upgrades   map[UpgradeName]upgradeWire `json:"upgrades"`
	Time       int64                       `json:"time"`
	TickCarry  int64                       `json:"tick_carry"`
	Settings   *settingsWire               `json:"settings"`
}

func Encode(d *GameData) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("encode: nil game data")
	}
	if d.Version != SchemaVersion {
		d = d.Clone()
		d.Version = SchemaVersion
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode game data: %w", err)
	}
	return raw, nil
}

// DetectVersion reads the version field of a save. Anything but a JSON object
// is ErrInvalidSave.
func DetectVersion(raw []byte) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0, fmt.Errorf("%w: top level must be a JSON object", ErrInvalidSave)
	}
	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return 0, fmt.Errorf("%w: decode save header: %w", ErrInvalidSave, err)
	}
	if probe.Version == nil {
		return 1, nil
	}
	return *probe.Version, nil
}

// Decode reads a save of any known version, migrates it to the current layout
// and fills anything missing from the registry defaults.
func (e *Engine) Decode(raw []byte) (*GameData, error) {
	version, err := DetectVersion(raw)
	if err != nil {
		return nil, err
	}
	var w saveV2
	switch {
	case version == 1:
		var v1 saveV1
		if err := json.Unmarshal(raw, &v1); err != nil {
			return nil, fmt.Errorf("%w: decode v1 save: %w", ErrInvalidSave, err)
		}
		w = migrateV1(v1)
		e.log.Info("migrated save", "from", 1, "to", SchemaVersion)
	case version == SchemaVersion:
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: decode v%d save: %w", ErrInvalidSave, version, err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return e.normalize(w), nil
}

func migrateV1(v1 saveV1) saveV2 {
	w := saveV2{
		Version:    SchemaVersion,
		Currencies: map[CurrencyName]Amount{},
		Mult:       v1.Mult,
		Upgrades:   v1.Upgrades,
		Time:       v1.Time,
		Settings:   v1.Settings,
	}
	if v1.Gold != nil {
		w.Currencies[Gold] = *v1.Gold
	}
	return w
}

func (e *Engine) normalize(w saveV2) *GameData {
	d := e.reg.NewData()
	for name, v := range w.Currencies {
		if !e.reg.HasCurrency(name) {
			e.log.Warn("dropping unknown currency from save", "currency", name)
			continue
		}
		d.Currencies[name] = nonNegative(v)
	}
	if w.Mult != nil && w.Mult.IsPositive() {
		d.Mult = *w.Mult
	}
	for name, u := range w.Upgrades {
		def, ok := e.reg.Upgrade(name)
		if !ok {
			e.log.Warn("dropping unknown upgrade from save", "upgrade", name)
			continue
		}
		st := d.Upgrades[name]
		if u.TimesBought != nil {
			st.TimesBought = nonNegative(u.TimesBought.Floor())
		}
		switch {
		case u.Cost != nil:
			st.Cost = nonNegative(*u.Cost)
		case def.Cost != nil:
			st.Cost = nonNegative(RoundCost(def.Cost(st.TimesBought), def.CostRounding))
		}
	}
	if w.Time > 0 {
		d.Time = w.Time
	}
	if w.TickCarry > 0 && w.TickCarry < d.Time {
		d.TickCarry = w.TickCarry
	}
	if s := w.Settings; s != nil {
		if s.Autosave != nil {
			d.Settings.Autosave = *s.Autosave
		}
		if s.AutosaveMillis != nil && *s.AutosaveMillis > 0 {
			d.Settings.AutosaveMillis = max(*s.AutosaveMillis, MinAutosaveMillis)
		}
		if s.OfflineProgress != nil {
			d.Settings.OfflineProgress = *s.OfflineProgress
		}
	}
	return d
}
