package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the stored conversion rate for a (base, target) currency
// pair. Rows are superseded by newer AsOf timestamps, never deleted.
type ExchangeRate struct {
	Base   string
	Target string
	Rate   decimal.Decimal
	AsOf   time.Time
}

// StaleAt reports whether the rate is older than the given threshold at the
// given instant. The store never hides stale data; callers decide.
func (r ExchangeRate) StaleAt(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.AsOf) > threshold
}

// Inverse returns the opposite direction of the pair, computed at conversion
// time. It is never written back to the store.
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{
		Base:   r.Target,
		Target: r.Base,
		Rate:   decimal.NewFromInt(1).Div(r.Rate),
		AsOf:   r.AsOf,
	}
}

type ExchangeRateRepository interface {
	Get(ctx context.Context, base, target string) (*ExchangeRate, error)
	GetAll(ctx context.Context) ([]*ExchangeRate, error)

	// Upsert replaces the stored row for the pair unless the stored AsOf is
	// newer, in which case the write is discarded and the stored row is
	// returned (last-writer-wins by AsOf).
	Upsert(ctx context.Context, rate *ExchangeRate) (*ExchangeRate, error)
}
