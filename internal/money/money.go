// Package money converts between user-facing amounts and the int64 minor
// units (centavos) stored everywhere else.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// MaxCents bounds any single amount (R$ 10 trilhões) so that ledger sums
// stay far from int64 overflow.
const MaxCents int64 = 1_000_000_000_000_000

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(MaxCents)
)

// ParseCents accepts "12.50", "12,50", "1.234,56", "R$ 7" and returns the
// value in centavos rounded half away from zero.
func ParseCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma > lastDot:
		// pt-BR: dots group thousands, the comma is the decimal separator.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return toCents(value)
}

// FromFloat is only used at the edge where legacy records carried floats.
func FromFloat(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidAmount
	}
	return toCents(decimal.NewFromFloat(value))
}

// CheckCents rejects amounts already in centavos that fall outside MaxCents.
func CheckCents(cents int64) error {
	if cents > MaxCents || cents < -MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

func toCents(value decimal.Decimal) (int64, error) {
	cents := value.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func Decimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders centavos the way the storefront shows prices: "R$ 1.234,56".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	fixed := Decimal(cents).StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	return sign + "R$ " + grouped.String() + "," + fracPart
}
