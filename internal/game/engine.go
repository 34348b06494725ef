package game

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Engine applies player actions to a GameData. It holds no game state itself;
// callers own the GameData and must not mutate it concurrently.
type Engine struct {
	reg *Registry
	log *slog.Logger
}

func NewEngine(reg *Registry, logger *slog.Logger) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reg: reg, log: logger}
}

func (e *Engine) Registry() *Registry {
	return e.reg
}

func (e *Engine) Initialize() *GameData {
	return e.reg.NewData()
}

func (e *Engine) resolve(d *GameData, name UpgradeName) (UpgradeDef, *UpgradeState, error) {
	st, ok := d.Upgrades[name]
	if !ok || st == nil {
		return UpgradeDef{}, nil, fmt.Errorf("%w: %s", ErrUnknownUpgrade, name)
	}
	def, ok := e.reg.Upgrade(name)
	if !ok {
		return UpgradeDef{}, nil, fmt.Errorf("%w: %s", ErrUnknownUpgrade, name)
	}
	if _, ok := d.Currencies[def.Currency]; !ok {
		return UpgradeDef{}, nil, fmt.Errorf("upgrade %s: %w: %s", name, ErrUnknownCurrency, def.Currency)
	}
	return def, st, nil
}

func (e *Engine) CanAfford(d *GameData, name UpgradeName) (bool, error) {
	def, st, err := e.resolve(d, name)
	if err != nil {
		return false, err
	}
	return d.Currencies[def.Currency].GreaterThanOrEqual(st.Cost), nil
}

// Purchase buys one level of an upgrade. On error d is left untouched.
func (e *Engine) Purchase(d *GameData, name UpgradeName) (Receipt, error) {
	def, st, err := e.resolve(d, name)
	if err != nil {
		return Receipt{}, err
	}
	balance := d.Currencies[def.Currency]
	if balance.LessThan(st.Cost) {
		return Receipt{}, fmt.Errorf("%w: %s costs %s %s, have %s", ErrInsufficientFunds, name, st.Cost, def.Currency, balance)
	}

	paid := st.Cost
	d.Currencies[def.Currency] = balance.Sub(paid)
	st.TimesBought = st.TimesBought.Add(decimal.NewFromInt(1))
	def.Scale(d, name)
	if def.Extra != nil {
		def.Extra()
	}
	if def.Cost != nil {
		st.Cost = nonNegative(RoundCost(def.Cost(st.TimesBought), def.CostRounding))
	}

	e.log.Debug("upgrade purchased",
		"upgrade", name,
		"paid", paid.String(),
		"times_bought", st.TimesBought.String(),
		"next_cost", st.Cost.String(),
	)
	return Receipt{
		Upgrade:     name,
		Currency:    def.Currency,
		Paid:        paid,
		Balance:     d.Currencies[def.Currency],
		TimesBought: st.TimesBought,
		NextCost:    st.Cost,
	}, nil
}

// Tick credits passive income: Mult of the primary currency per whole tick
// interval elapsed. Leftover milliseconds carry into the next call.
func (e *Engine) Tick(d *GameData, elapsed time.Duration) TickResult {
	primary := e.reg.Primary()
	res := TickResult{Currency: primary, Earned: decimal.Zero, Balance: d.Currencies[primary], Carry: d.TickCarry}
	if elapsed <= 0 {
		return res
	}
	interval := d.Time
	if interval <= 0 {
		interval = DefaultTickMillis
		d.Time = interval
	}
	total := d.TickCarry + elapsed.Milliseconds()
	ticks := total / interval
	d.TickCarry = total % interval
	res.Carry = d.TickCarry
	if ticks == 0 {
		return res
	}
	earned := d.Mult.Mul(decimal.NewFromInt(ticks))
	d.Currencies[primary] = d.Currencies[primary].Add(earned)
	res.Ticks = ticks
	res.Earned = earned
	res.Balance = d.Currencies[primary]
	return res
}

func (e *Engine) Upgrades(d *GameData) []UpgradeView {
	out := make([]UpgradeView, 0, len(d.Upgrades))
	for _, name := range d.UpgradeNames() {
		def, st, err := e.resolve(d, name)
		if err != nil {
			continue
		}
		out = append(out, UpgradeView{
			Name:        name,
			Currency:    def.Currency,
			Cost:        st.Cost,
			TimesBought: st.TimesBought,
			Affordable:  d.Currencies[def.Currency].GreaterThanOrEqual(st.Cost),
			Dynamic:     def.Cost != nil,
		})
	}
	return out
}
