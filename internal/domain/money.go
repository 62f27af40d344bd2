package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an integer amount of minor units (cents for USD) together with an
// ISO 4217 currency code. Monetary values are never represented as floats.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, ValidationError{Field: "currency", Reason: "must be a 3-letter ISO 4217 code"}
	}
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return Money{}, ValidationError{Field: "currency", Reason: "must be a 3-letter ISO 4217 code"}
		}
	}

	return Money{Amount: amount, Currency: code}, nil
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ValidationError{Field: "currency", Reason: "currency mismatch"}
	}

	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ValidationError{Field: "currency", Reason: "currency mismatch"}
	}

	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Major returns the amount in major units as an exact decimal, given the
// currency's number of decimal places.
func (m Money) Major(decimalPlaces int) decimal.Decimal {
	return decimal.New(m.Amount, -int32(decimalPlaces))
}

// Format renders the amount using the currency's configured separators and
// symbol placement, e.g. "$1,234.56" or "1.234,56 €".
func (m Money) Format(c Currency) string {
	major := m.Major(c.DecimalPlaces)
	digits := major.Abs().StringFixed(int32(c.DecimalPlaces))

	intPart := digits
	fracPart := ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart, fracPart = digits[:i], digits[i+1:]
	}

	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(c.ThousandSeparator)
		}
		b.WriteRune(ch)
	}

	formatted := b.String()
	if fracPart != "" {
		formatted += c.DecimalSeparator + fracPart
	}

	if c.PrefixSymbol {
		formatted = c.Symbol + formatted
	} else {
		formatted = fmt.Sprintf("%s %s", formatted, c.Symbol)
	}

	if m.Amount < 0 {
		formatted = "-" + formatted
	}

	return formatted
}
