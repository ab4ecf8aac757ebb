// Package xrpamount converts between decimal XRP amounts and integer drops.
package xrpamount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP int64 = 1_000_000

// Places is the number of fractional digits representable in drops.
const Places int32 = 6

var (
	// ErrNotPositive indicates a zero or negative amount.
	ErrNotPositive = errors.New("amount must be greater than zero")
	// ErrTooPrecise indicates an amount finer than one drop.
	ErrTooPrecise = errors.New("amount is finer than one drop")
	// ErrOutOfRange indicates an amount that does not fit in int64 drops.
	ErrOutOfRange = errors.New("amount out of range")
)

var dropsMultiplier = decimal.NewFromInt(DropsPerXRP)

// ToDrops converts a positive XRP amount to drops.
func ToDrops(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrNotPositive, amount.String())
	}
	if !amount.Equal(amount.Truncate(Places)) {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, amount.String())
	}
	drops := amount.Mul(dropsMultiplier)
	if !drops.IsInteger() || !drops.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, amount.String())
	}
	return drops.IntPart(), nil
}

// FromDrops converts drops to an XRP amount.
func FromDrops(drops int64) decimal.Decimal {
	return decimal.New(drops, -Places)
}

// ParseDrops parses a decimal drops string as returned by the XRPL API.
func ParseDrops(raw string) (decimal.Decimal, error) {
	drops, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse drops %q: %w", raw, err)
	}
	if !drops.IsInteger() {
		return decimal.Decimal{}, fmt.Errorf("%w: fractional drops %q", ErrTooPrecise, raw)
	}
	return drops.Shift(-Places), nil
}
