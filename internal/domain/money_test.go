package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		want     Money
		wantErr  bool
	}{
		{"valid", 10000, "USD", Money{Amount: 10000, Currency: "USD"}, false},
		{"normalizes case and whitespace", 500, " eur ", Money{Amount: 500, Currency: "EUR"}, false},
		{"zero amount is representable", 0, "USD", Money{Amount: 0, Currency: "USD"}, false},
		{"too short", 100, "US", Money{}, true},
		{"not letters", 100, "U5D", Money{}, true},
		{"empty", 100, "", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMoney(tt.amount, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Amount: 10000, Currency: "USD"}
	b := Money{Amount: 4000, Currency: "USD"}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(14000), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), diff.Amount)

	_, err = a.Add(Money{Amount: 1, Currency: "EUR"})
	assert.Error(t, err)
}

func TestMoneyFormat(t *testing.T) {
	usd := Currency{
		Code: "USD", Symbol: "$", PrefixSymbol: true,
		DecimalPlaces: 2, DecimalSeparator: ".", ThousandSeparator: ",",
	}
	eur := Currency{
		Code: "EUR", Symbol: "€", PrefixSymbol: false,
		DecimalPlaces: 2, DecimalSeparator: ",", ThousandSeparator: ".",
	}
	jpy := Currency{
		Code: "JPY", Symbol: "¥", PrefixSymbol: true,
		DecimalPlaces: 0, DecimalSeparator: ".", ThousandSeparator: ",",
	}

	tests := []struct {
		name     string
		money    Money
		currency Currency
		want     string
	}{
		{"prefix symbol with grouping", Money{Amount: 123456, Currency: "USD"}, usd, "$1,234.56"},
		{"suffix symbol with european separators", Money{Amount: 123456, Currency: "EUR"}, eur, "1.234,56 €"},
		{"zero decimal places", Money{Amount: 1234567, Currency: "JPY"}, jpy, "¥1,234,567"},
		{"small amount", Money{Amount: 5, Currency: "USD"}, usd, "$0.05"},
		{"negative amount", Money{Amount: -9000, Currency: "USD"}, usd, "-$90.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.money.Format(tt.currency))
		})
	}
}
