// Package rates owns the currency catalog and exchange-rate table: lookups,
// last-writer-wins upserts, and money conversion with half-to-even rounding.
package rates

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultStaleThreshold is how old a rate may be before Convert refuses to
// use it for new conversions.
const DefaultStaleThreshold = 24 * time.Hour

type Store struct {
	rates      domain.ExchangeRateRepository
	currencies domain.CurrencyRepository
	staleAfter time.Duration
	logger     *slog.Logger

	// now is swapped in tests to pin staleness checks.
	now func() time.Time
}

func NewStore(rates domain.ExchangeRateRepository, currencies domain.CurrencyRepository, staleAfter time.Duration, logger *slog.Logger) *Store {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleThreshold
	}

	return &Store{
		rates:      rates,
		currencies: currencies,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// GetRate returns the stored rate for the pair with its age exposed through
// AsOf. Staleness is the caller's judgment; the store never hides old data.
func (s *Store) GetRate(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	return s.rates.Get(ctx, base, target)
}

func (s *Store) GetAllRates(ctx context.Context) ([]*domain.ExchangeRate, error) {
	return s.rates.GetAll(ctx)
}

// Stale reports whether the rate has aged past the store's threshold.
func (s *Store) Stale(rate *domain.ExchangeRate) bool {
	return rate.StaleAt(s.now(), s.staleAfter)
}

func (s *Store) UpsertRate(ctx context.Context, base, target string, rate decimal.Decimal, asOf time.Time) (*domain.ExchangeRate, error) {
	if base == target {
		return nil, domain.ValidationError{Field: "target", Reason: "base and target must differ"}
	}
	if !rate.IsPositive() {
		return nil, domain.ValidationError{Field: "rate", Reason: "must be greater than zero"}
	}

	return s.rates.Upsert(ctx, &domain.ExchangeRate{
		Base:   base,
		Target: target,
		Rate:   rate,
		AsOf:   asOf,
	})
}

// Convert applies the stored rate for (from, to), falling back to the inverse
// pair when only the opposite direction is known. The result is rounded to
// the target currency's decimal places using round-half-to-even.
func (s *Store) Convert(ctx context.Context, amount domain.Money, to string) (domain.Money, error) {
	if amount.Currency == to {
		return amount, nil
	}

	from, err := s.currencies.GetByCode(ctx, amount.Currency)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Money{}, domain.ValidationError{Field: "currency", Reason: "unknown currency " + amount.Currency}
		}
		return domain.Money{}, err
	}

	target, err := s.currencies.GetByCode(ctx, to)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Money{}, domain.ValidationError{Field: "currency", Reason: "unknown currency " + to}
		}
		return domain.Money{}, err
	}

	rate, err := s.lookupRate(ctx, from.Code, target.Code)
	if err != nil {
		return domain.Money{}, err
	}

	if rate.StaleAt(s.now(), s.staleAfter) {
		return domain.Money{}, domain.RateUnavailableError{
			Base:   from.Code,
			Target: target.Code,
			Reason: "rate is older than the staleness threshold",
		}
	}

	converted := amount.Major(from.DecimalPlaces).
		Mul(rate.Rate).
		Shift(int32(target.DecimalPlaces)).
		RoundBank(0)

	return domain.Money{Amount: converted.IntPart(), Currency: target.Code}, nil
}

func (s *Store) lookupRate(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	rate, err := s.rates.Get(ctx, base, target)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	inverse, err := s.rates.Get(ctx, target, base)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.RateUnavailableError{Base: base, Target: target, Reason: "no rate stored in either direction"}
		}
		return nil, err
	}

	inverted := inverse.Inverse()
	return &inverted, nil
}
