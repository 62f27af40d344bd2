package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/payflowhq/payflow/internal/domain"
)

type pairKey struct {
	base   string
	target string
}

// InMemoryExchangeRateRepository mirrors the Postgres upsert semantics:
// last-writer-wins by AsOf, one row per (base, target) pair.
type InMemoryExchangeRateRepository struct {
	mu    sync.Mutex
	rates map[pairKey]*domain.ExchangeRate
}

func NewInMemoryExchangeRateRepository() *InMemoryExchangeRateRepository {
	return &InMemoryExchangeRateRepository{
		rates: make(map[pairKey]*domain.ExchangeRate),
	}
}

func (r *InMemoryExchangeRateRepository) Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rate, ok := r.rates[pairKey{base, target}]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	copied := *rate
	return &copied, nil
}

func (r *InMemoryExchangeRateRepository) GetAll(ctx context.Context) ([]*domain.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rates := make([]*domain.ExchangeRate, 0, len(r.rates))
	for _, rate := range r.rates {
		copied := *rate
		rates = append(rates, &copied)
	}

	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Base != rates[j].Base {
			return rates[i].Base < rates[j].Base
		}
		return rates[i].Target < rates[j].Target
	})

	return rates, nil
}

func (r *InMemoryExchangeRateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) (*domain.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{rate.Base, rate.Target}

	if existing, ok := r.rates[key]; ok && existing.AsOf.After(rate.AsOf) {
		copied := *existing
		return &copied, nil
	}

	stored := *rate
	r.rates[key] = &stored

	copied := stored
	return &copied, nil
}

// InMemoryCurrencyRepository holds the currency catalog for tests and local
// runs.
type InMemoryCurrencyRepository struct {
	mu         sync.Mutex
	currencies map[string]*domain.Currency
}

func NewInMemoryCurrencyRepository(currencies ...*domain.Currency) *InMemoryCurrencyRepository {
	repo := &InMemoryCurrencyRepository{
		currencies: make(map[string]*domain.Currency),
	}
	for _, currency := range currencies {
		copied := *currency
		repo.currencies[currency.Code] = &copied
	}

	return repo
}

func (r *InMemoryCurrencyRepository) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currency, ok := r.currencies[code]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	copied := *currency
	return &copied, nil
}

func (r *InMemoryCurrencyRepository) GetAll(ctx context.Context) ([]*domain.Currency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currencies := make([]*domain.Currency, 0, len(r.currencies))
	for _, currency := range r.currencies {
		copied := *currency
		currencies = append(currencies, &copied)
	}

	sort.Slice(currencies, func(i, j int) bool {
		return currencies[i].Code < currencies[j].Code
	})

	return currencies, nil
}

func (r *InMemoryCurrencyRepository) Upsert(ctx context.Context, currency *domain.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *currency
	r.currencies[currency.Code] = &copied

	return nil
}

func (r *InMemoryCurrencyRepository) Deactivate(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	currency, ok := r.currencies[code]
	if !ok {
		return domain.ErrRecordNotFound
	}

	currency.Active = false
	return nil
}
