// Package accrual implements the fixed-point rent-per-unit accumulator used
// for O(1) pro-rata distribution: one scaled counter is advanced on every
// rent credit, and each holder settles against it with a per-holder debt
// baseline. No operation ever iterates over the holder set.
package accrual

import (
	"fmt"
	"math/big"
)

// Precision is the fixed-point scale of the accumulator. Scaled values
// exceed int64, so accumulators travel as decimal strings and all arithmetic
// goes through math/big.
const Precision = "1000000000000000000" // 1e18

var precision, _ = new(big.Int).SetString(Precision, 10)

// Parse decodes a stored accumulator value. The empty string is zero, so
// documents created before any credit need no initialization.
func Parse(acc string) (*big.Int, error) {
	if acc == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(acc, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("malformed accumulator value %q", acc)
	}
	return v, nil
}

func Format(acc *big.Int) string {
	return acc.String()
}

// Credit advances the accumulator by amount spread across soldUnits:
// acc += amount * 1e18 / soldUnits, floored. The per-credit rounding loss is
// below soldUnits settlement units and never creates money.
func Credit(acc string, amount, soldUnits int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	if soldUnits <= 0 {
		return "", fmt.Errorf("cannot credit accumulator with %d sold units", soldUnits)
	}
	cur, err := Parse(acc)
	if err != nil {
		return "", err
	}
	delta := new(big.Int).Mul(big.NewInt(amount), precision)
	delta.Quo(delta, big.NewInt(soldUnits))
	return Format(cur.Add(cur, delta)), nil
}

// Accrued is the total rent ever attributable to a holding of the given
// size: floor(units * acc / 1e18). Debt snapshots and claims are both
// expressed in this quantity, so flooring here cannot double-count.
func Accrued(units int64, acc string) (int64, error) {
	if units < 0 {
		return 0, fmt.Errorf("unit count cannot be negative, got %d", units)
	}
	cur, err := Parse(acc)
	if err != nil {
		return 0, err
	}
	total := new(big.Int).Mul(big.NewInt(units), cur)
	total.Quo(total, precision)
	if !total.IsInt64() {
		return 0, fmt.Errorf("accrued amount overflows settlement range")
	}
	return total.Int64(), nil
}

// Pending is the holder's claimable balance: accrued minus the debt
// baseline. A freshly settled or freshly bought position pends zero.
func Pending(units int64, acc string, debt int64) (int64, error) {
	accrued, err := Accrued(units, acc)
	if err != nil {
		return 0, err
	}
	if debt > accrued {
		return 0, fmt.Errorf("debt %d exceeds accrued %d", debt, accrued)
	}
	return accrued - debt, nil
}
