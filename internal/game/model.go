package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	SchemaVersion = 2

	DefaultTickMillis = int64(1000)
	MinTickMillis     = int64(50)

	DefaultAutosaveMillis = int64(30_000)
	MinAutosaveMillis     = int64(1000)
)

var (
	ErrUnknownUpgrade     = errors.New("unknown upgrade")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnsupportedVersion = errors.New("unsupported save version")
	ErrInvalidSave        = errors.New("invalid save data")
	ErrInvalidName        = errors.New("name must be 1-32 lowercase letters or digits")
)

// Amount is the arbitrary-precision value used for every balance, cost and
// counter. decimal.Decimal is immutable, so copying a struct never aliases.
type Amount = decimal.Decimal

type CurrencyName string

type UpgradeName string

var nameRE = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

func ValidateName(name string) error {
	if !nameRE.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidName
	}
	return nil
}

func ParseAmount(s string) (Amount, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// RoundCost applies a cost rounding hint. nil leaves the value untouched.
func RoundCost(v Amount, places *int32) Amount {
	if places == nil {
		return v
	}
	return v.Round(*places)
}

// ExponentialCost returns base * growth^n, the usual incremental-game curve.
func ExponentialCost(base, growth Amount) CostFunc {
	return func(timesBought Amount) Amount {
		return base.Mul(growth.Pow(timesBought))
	}
}

// LinearCost returns base + step*n.
func LinearCost(base, step Amount) CostFunc {
	return func(timesBought Amount) Amount {
		return base.Add(step.Mul(timesBought))
	}
}

func nonNegative(v Amount) Amount {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
