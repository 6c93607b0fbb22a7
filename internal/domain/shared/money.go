package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyGHS is the only currency the marketplace settles in.
const CurrencyGHS = "GHS"

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrTooPrecise        = errors.New("amount has more than two decimal places")
)

var pesewasPerCedi = decimal.NewFromInt(100)

// ToPesewas converts a decimal GHS amount into minor units. The amount must be
// positive and carry at most two decimal places.
func ToPesewas(amount decimal.Decimal) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, ErrNonPositiveAmount
	}
	minor := amount.Mul(pesewasPerCedi)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, amount.String())
	}
	return minor.IntPart(), nil
}

// FromPesewas converts minor units back into a decimal GHS amount.
func FromPesewas(pesewas int64) decimal.Decimal {
	return decimal.NewFromInt(pesewas).Div(pesewasPerCedi)
}
