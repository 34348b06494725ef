package game

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ScaleFunc applies the gameplay effect of buying an upgrade.
type ScaleFunc func(d *GameData, name UpgradeName)

// CostFunc maps the new timesBought counter to the next cost.
type CostFunc func(timesBought Amount) Amount

// UpgradeDef is the static half of an upgrade. Only the name is persisted; the
// definition is re-bound from the Registry on load.
type UpgradeDef struct {
	Name         UpgradeName
	Currency     CurrencyName
	BaseCost     Amount
	Scale        ScaleFunc
	Cost         CostFunc
	CostRounding *int32
	Extra        func()
}

type CurrencyDef struct {
	Name  CurrencyName
	Start Amount
}

// Registry is the game definition: recognised currencies, upgrade effects and
// starting values. It is never persisted.
type Registry struct {
	primary    CurrencyName
	currencies []CurrencyDef
	upgrades   map[UpgradeName]UpgradeDef
	startMult  Amount
	startTime  int64
}

func NewRegistry(primary CurrencyName, startMult Amount, startTime int64) *Registry {
	if startTime <= 0 {
		startTime = DefaultTickMillis
	}
	return &Registry{
		primary:   primary,
		upgrades:  make(map[UpgradeName]UpgradeDef),
		startMult: startMult,
		startTime: startTime,
	}
}

func (r *Registry) AddCurrency(def CurrencyDef) error {
	if err := ValidateName(string(def.Name)); err != nil {
		return fmt.Errorf("currency %q: %w", def.Name, err)
	}
	for _, c := range r.currencies {
		if c.Name == def.Name {
			return fmt.Errorf("currency %q already registered", def.Name)
		}
	}
	def.Start = nonNegative(def.Start)
	r.currencies = append(r.currencies, def)
	return nil
}

func (r *Registry) AddUpgrade(def UpgradeDef) error {
	if err := ValidateName(string(def.Name)); err != nil {
		return fmt.Errorf("upgrade %q: %w", def.Name, err)
	}
	if _, ok := r.upgrades[def.Name]; ok {
		return fmt.Errorf("upgrade %q already registered", def.Name)
	}
	if !r.HasCurrency(def.Currency) {
		return fmt.Errorf("upgrade %q: %w: %s", def.Name, ErrUnknownCurrency, def.Currency)
	}
	if def.Scale == nil {
		def.Scale = func(*GameData, UpgradeName) {}
	}
	r.upgrades[def.Name] = def
	return nil
}

func (r *Registry) HasCurrency(name CurrencyName) bool {
	for _, c := range r.currencies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (r *Registry) Primary() CurrencyName {
	return r.primary
}

func (r *Registry) Upgrade(name UpgradeName) (UpgradeDef, bool) {
	def, ok := r.upgrades[name]
	return def, ok
}

func (r *Registry) UpgradeNames() []UpgradeName {
	out := make([]UpgradeName, 0, len(r.upgrades))
	for name := range r.upgrades {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Currencies() []CurrencyDef {
	return append([]CurrencyDef(nil), r.currencies...)
}

// NewData builds a fresh GameData from the registry's starting values.
func (r *Registry) NewData() *GameData {
	d := &GameData{
		Version:    SchemaVersion,
		Currencies: make(map[CurrencyName]Amount, len(r.currencies)),
		Mult:       r.startMult,
		Upgrades:   make(map[UpgradeName]*UpgradeState, len(r.upgrades)),
		Time:       r.startTime,
		Settings:   DefaultSettings(),
	}
	for _, c := range r.currencies {
		d.Currencies[c.Name] = c.Start
	}
	for name, def := range r.upgrades {
		d.Upgrades[name] = &UpgradeState{
			Cost:        def.BaseCost,
			TimesBought: decimal.Zero,
		}
	}
	return d
}

const (
	Gold CurrencyName = "gold"

	UpgradeMult UpgradeName = "upgrademult"
	UpgradeTime UpgradeName = "upgradetime"
)

// DefaultRegistry returns the stock game definition. Each call builds a new
// registry; nothing here is shared between callers.
func DefaultRegistry() *Registry {
	r := NewRegistry(Gold, decimal.NewFromInt(2), DefaultTickMillis)
	mustAdd(r.AddCurrency(CurrencyDef{Name: Gold, Start: decimal.NewFromInt(1)}))
	mustAdd(r.AddUpgrade(UpgradeDef{
		Name:     UpgradeMult,
		Currency: Gold,
		BaseCost: decimal.NewFromInt(1024),
		Scale:    DoubleMult,
	}))
	mustAdd(r.AddUpgrade(UpgradeDef{
		Name:     UpgradeTime,
		Currency: Gold,
		BaseCost: decimal.New(1, 9),
		Scale:    ShortenTick,
	}))
	return r
}

// DefaultData is the fresh-game state of the stock definition.
func DefaultData() *GameData {
	return DefaultRegistry().NewData()
}

func DoubleMult(d *GameData, _ UpgradeName) {
	d.Mult = d.Mult.Mul(decimal.NewFromInt(2))
}

// ShortenTick cuts the tick interval by 10%, never below MinTickMillis.
func ShortenTick(d *GameData, _ UpgradeName) {
	next := d.Time * 9 / 10
	if next < MinTickMillis {
		next = MinTickMillis
	}
	d.Time = next
}

func mustAdd(err error) {
	if err != nil {
		panic(err)
	}
}
