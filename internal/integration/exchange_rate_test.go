package integration_test

import (
	"context"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/shopspring/decimal"
)

type ExchangeRateSuite struct {
	BaseSuite
}

func (s *ExchangeRateSuite) TestUpsertIsLastWriterWinsByTimestamp() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.stack.RateStore.UpsertRate(ctx, "USD", "EUR", decimal.RequireFromString("0.92"), now)
	s.Require().NoError(err)

	// An older snapshot must not clobber the stored rate.
	stored, err := s.stack.RateStore.UpsertRate(ctx, "USD", "EUR", decimal.RequireFromString("0.85"), now.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(stored.Rate.Equal(decimal.RequireFromString("0.92")))
	s.WithinDuration(now, stored.AsOf, time.Second)

	// A newer one replaces it.
	stored, err = s.stack.RateStore.UpsertRate(ctx, "USD", "EUR", decimal.RequireFromString("0.93"), now.Add(time.Hour))
	s.Require().NoError(err)
	s.True(stored.Rate.Equal(decimal.RequireFromString("0.93")))
}

func (s *ExchangeRateSuite) TestConvertUsesStoredAndInverseRates() {
	ctx := context.Background()

	_, err := s.stack.RateStore.UpsertRate(ctx, "USD", "JPY", decimal.RequireFromString("155"), time.Now().UTC())
	s.Require().NoError(err)

	converted, err := s.stack.RateStore.Convert(ctx, domain.Money{Amount: 10000, Currency: "USD"}, "JPY")
	s.Require().NoError(err)
	s.Equal(int64(15500), converted.Amount)
	s.Equal("JPY", converted.Currency)

	// Only USD/JPY is stored; the opposite direction goes through the
	// computed inverse.
	converted, err = s.stack.RateStore.Convert(ctx, domain.Money{Amount: 15500, Currency: "JPY"}, "USD")
	s.Require().NoError(err)
	s.Equal(int64(10000), converted.Amount)
}

func (s *ExchangeRateSuite) TestConvertRefusesStaleRate() {
	ctx := context.Background()

	_, err := s.stack.RateStore.UpsertRate(ctx, "USD", "GBP", decimal.RequireFromString("0.78"), time.Now().UTC().Add(-72*time.Hour))
	s.Require().NoError(err)

	_, err = s.stack.RateStore.Convert(ctx, domain.Money{Amount: 100, Currency: "USD"}, "GBP")

	var rateErr domain.RateUnavailableError
	s.ErrorAs(err, &rateErr)
}
