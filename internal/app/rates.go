package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/payflowhq/payflow/api"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/scheduler"
)

func (app *application) GetExchangeRateHandler(w http.ResponseWriter, r *http.Request) {
	base := strings.ToUpper(chi.URLParam(r, "base"))
	target := strings.ToUpper(chi.URLParam(r, "target"))

	rate, err := app.rateStore.GetRate(r.Context(), base, target)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, app.toRateResponse(rate), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ListExchangeRatesHandler(w http.ResponseWriter, r *http.Request) {
	rates, err := app.rateStore.GetAllRates(r.Context())
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.ExchangeRateListResponse{
		Rates: make([]api.ExchangeRateResponse, 0, len(rates)),
	}

	for _, rate := range rates {
		resp.Rates = append(resp.Rates, app.toRateResponse(rate))
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ConvertAmountHandler(w http.ResponseWriter, r *http.Request) {
	base := strings.ToUpper(chi.URLParam(r, "base"))
	target := strings.ToUpper(chi.URLParam(r, "target"))

	amount, err := app.readInt(r.URL.Query(), "amount", 0)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if amount <= 0 {
		app.badRequestResponse(w, r, errors.New("query parameter \"amount\" must be a positive integer in minor units"))
		return
	}

	money, err := domain.NewMoney(int64(amount), base)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	converted, err := app.rateStore.Convert(r.Context(), money, target)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	currency, err := app.currencyRepo.GetByCode(r.Context(), converted.Currency)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.ConversionResponse{
		Amount:    converted.Amount,
		Currency:  converted.Currency,
		Formatted: converted.Format(*currency),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// RefreshRatesHandler queues a refresh through the scheduler rather than
// running it inline, so manual triggers get the same retry and dead-letter
// treatment as the periodic ones.
func (app *application) RefreshRatesHandler(w http.ResponseWriter, r *http.Request) {
	err := app.scheduler.Submit(app.rateRefreshTask())
	if err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			app.errorResponse(w, r, http.StatusServiceUnavailable, "background scheduler is not accepting work")
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.RateRefreshResponse{Status: "scheduled"}

	err = app.writeJSON(w, http.StatusAccepted, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) toRateResponse(rate *domain.ExchangeRate) api.ExchangeRateResponse {
	return api.ExchangeRateResponse{
		Base:   rate.Base,
		Target: rate.Target,
		Rate:   rate.Rate.String(),
		AsOf:   rate.AsOf,
		Stale:  app.rateStore.Stale(rate),
	}
}
