package mocks

import (
	"context"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockExchangeRateRepo struct {
	mock.Mock
	domain.ExchangeRateRepository
}

func (m *MockExchangeRateRepo) Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	args := m.Called(ctx, base, target)
	rate, _ := args.Get(0).(*domain.ExchangeRate)
	return rate, args.Error(1)
}

func (m *MockExchangeRateRepo) GetAll(ctx context.Context) ([]*domain.ExchangeRate, error) {
	args := m.Called(ctx)
	rates, _ := args.Get(0).([]*domain.ExchangeRate)
	return rates, args.Error(1)
}

func (m *MockExchangeRateRepo) Upsert(ctx context.Context, rate *domain.ExchangeRate) (*domain.ExchangeRate, error) {
	args := m.Called(ctx, rate)
	stored, _ := args.Get(0).(*domain.ExchangeRate)
	return stored, args.Error(1)
}

type MockCurrencyRepo struct {
	mock.Mock
	domain.CurrencyRepository
}

func (m *MockCurrencyRepo) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	args := m.Called(ctx, code)
	currency, _ := args.Get(0).(*domain.Currency)
	return currency, args.Error(1)
}

func (m *MockCurrencyRepo) GetAll(ctx context.Context) ([]*domain.Currency, error) {
	args := m.Called(ctx)
	currencies, _ := args.Get(0).([]*domain.Currency)
	return currencies, args.Error(1)
}

func (m *MockCurrencyRepo) Upsert(ctx context.Context, currency *domain.Currency) error {
	args := m.Called(ctx, currency)
	return args.Error(0)
}

func (m *MockCurrencyRepo) Deactivate(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}
