package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts and balances are numeric(36,18): 18 integer and 18 fractional digits.
const (
	AmountScale         = 18
	AmountIntegerDigits = 18
)

var (
	ErrAmountZero       = errors.New("amount must not be zero")
	ErrAmountFormat     = errors.New("amount is not a plain decimal number")
	ErrAmountPrecision  = errors.New("amount has more than 18 decimal places")
	ErrAmountOutOfRange = errors.New("amount exceeds 18 integer digits")
)

var (
	amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	amountLimit   = decimal.New(1, AmountIntegerDigits)
)

// ParseAmount parses an exact decimal string such as "100", "-30.5" or
// "0.000000000000000001". Exponents, NaN and infinities are rejected.
// Zero parses successfully; ValidateAmount rejects it.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountFormat, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountFormat, s)
	}

	if err := CheckRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckRange verifies d fits numeric(36,18).
func CheckRange(d decimal.Decimal) error {
	if !d.Round(AmountScale).Equal(d) {
		return ErrAmountPrecision
	}
	if d.Abs().GreaterThanOrEqual(amountLimit) {
		return ErrAmountOutOfRange
	}
	return nil
}

// ValidateAmount is the rule applied to every transaction amount.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsZero() {
		return ErrAmountZero
	}
	return CheckRange(d)
}

// FormatAmount renders d with the full storage scale, e.g. "70.000000000000000000".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
