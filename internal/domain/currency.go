package domain

import "context"

// Currency is a supported currency with its display formatting rules.
// Retirement is deactivation, never deletion, so historical payments keep a
// valid currency reference.
type Currency struct {
	Code              string
	Name              string
	Symbol            string
	PrefixSymbol      bool
	DecimalPlaces     int
	DecimalSeparator  string
	ThousandSeparator string
	Active            bool
}

type CurrencyRepository interface {
	GetByCode(ctx context.Context, code string) (*Currency, error)
	GetAll(ctx context.Context) ([]*Currency, error)
	Upsert(ctx context.Context, currency *Currency) error
	Deactivate(ctx context.Context, code string) error
}
