// internal/domain/amount.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"balance-ledger/internal/util"
)

// AmountDecimalPlaces is the smallest currency unit an amount may express (pesewas).
const AmountDecimalPlaces = 2

// maxAmountLength bounds the raw text ParseAmount will hand to the decimal parser.
const maxAmountLength = 32

// MaxAmount is the largest amount a single operation may carry.
var MaxAmount = decimal.New(1, 12)

// ParseAmount parses a user supplied amount in plain decimal notation.
// Exponent notation, more than two decimal places and anything that is not a
// finite positive decimal are rejected with util.ErrInvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountLength || strings.ContainsAny(raw, "eE") {
		return decimal.Zero, util.ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, util.ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount rejects zero, negative, oversized and sub-pesewa amounts.
// The exponent is checked before any comparison so a crafted value never
// forces a large rescale.
func ValidateAmount(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp < -maxAmountLength || exp > maxAmountLength {
		return util.ErrInvalidAmount
	}
	if amount.Sign() <= 0 || amount.GreaterThan(MaxAmount) {
		return util.ErrInvalidAmount
	}
	// Trailing zeros such as 1.500 are fine.
	if exp < -AmountDecimalPlaces && !amount.Equal(amount.Truncate(AmountDecimalPlaces)) {
		return util.ErrInvalidAmount
	}
	return nil
}
