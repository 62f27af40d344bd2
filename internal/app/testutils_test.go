package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/payflowhq/payflow/api"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/ledger"
	"github.com/payflowhq/payflow/internal/mailer"
	"github.com/payflowhq/payflow/internal/rates"
	"github.com/payflowhq/payflow/internal/repository"
	"github.com/payflowhq/payflow/internal/scheduler"
	"github.com/payflowhq/payflow/internal/validator"
	"github.com/payflowhq/payflow/internal/webhook"
	"github.com/shopspring/decimal"
)

func testCurrencies() []*domain.Currency {
	return []*domain.Currency{
		{
			Code: "USD", Name: "US Dollar", Symbol: "$", PrefixSymbol: true,
			DecimalPlaces: 2, DecimalSeparator: ".", ThousandSeparator: ",", Active: true,
		},
		{
			Code: "EUR", Name: "Euro", Symbol: "€", PrefixSymbol: false,
			DecimalPlaces: 2, DecimalSeparator: ",", ThousandSeparator: ".", Active: true,
		},
	}
}

func newTestApplication(t *testing.T, opts ...func(*application)) *application {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	currencyRepo := repository.NewInMemoryCurrencyRepository(testCurrencies()...)
	paymentRepo := repository.NewInMemoryPaymentRepository()
	rateRepo := repository.NewInMemoryExchangeRateRepository()

	ledgerService := ledger.NewService(paymentRepo, currencyRepo, nil, logger)
	rateStore := rates.NewStore(rateRepo, currencyRepo, 0, logger)

	sched := scheduler.New(scheduler.Config{Workers: 1, QueueSize: 4}, logger)
	sched.Start()
	t.Cleanup(sched.Stop)

	app := &application{
		validator:    validator.NewValidator(),
		logger:       logger,
		mailer:       mailer.NewMockMailer(),
		currencyRepo: currencyRepo,
		ledger:       ledgerService,
		rateStore:    rateStore,
		scheduler:    sched,
		reconciler:   webhook.NewReconciler(ledgerService, nil, logger),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var resp T
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp
}

func createPaymentRequest() api.CreatePaymentRequest {
	return api.CreatePaymentRequest{
		OwnerID:    1,
		Amount:     10000,
		Currency:   "USD",
		Provider:   "stripe",
		MethodType: "credit_card",
		Card: &api.CardDetails{
			Brand:          "visa",
			Last4:          "4242",
			ExpirationDate: "12/30",
		},
		Metadata: map[string]string{"order": "ord-789"},
	}
}

func createTestPayment(t *testing.T, app *application) *domain.Payment {
	t.Helper()

	req := createPaymentRequest()

	payment, err := app.ledger.CreatePayment(context.Background(), ledger.CreatePaymentParams{
		OwnerID:  req.OwnerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Provider: domain.PaymentProvider(req.Provider),
		Method:   toDomainMethod(req),
		Metadata: req.Metadata,
	})
	if err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}

func settleTestPayment(t *testing.T, app *application, transactionID string) {
	t.Helper()

	ctx := context.Background()

	if _, _, err := app.ledger.ApplyStatusTransition(ctx, transactionID, domain.PaymentStatusAuthorized, "evt-auth-"+transactionID); err != nil {
		t.Fatalf("Failed to authorize test payment: %v", err)
	}
	if _, _, err := app.ledger.ApplyStatusTransition(ctx, transactionID, domain.PaymentStatusSettled, "evt-settle-"+transactionID); err != nil {
		t.Fatalf("Failed to settle test payment: %v", err)
	}
}

func seedRate(t *testing.T, app *application, base, target, rate string, asOf time.Time) {
	t.Helper()

	_, err := app.rateStore.UpsertRate(context.Background(), base, target, decimal.RequireFromString(rate), asOf)
	if err != nil {
		t.Fatalf("Failed to seed rate %s/%s: %v", base, target, err)
	}
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantErrMessage string) {
	t.Helper()

	if wantStatus >= 200 && wantStatus < 300 {
		return
	}

	switch wantStatus {
	case http.StatusUnprocessableEntity:
		// Structured field errors and domain validation messages both come
		// back as 422; try the field-error shape first.
		body := w.Body.Bytes()

		var validationResp api.ValidationErrorResponse
		if err := json.Unmarshal(body, &validationResp); err == nil && len(validationResp.ValidationErrors) > 0 {
			for _, vErr := range validationResp.ValidationErrors {
				if vErr.Issue == wantErrMessage {
					return
				}
			}
			t.Errorf("Expected validation error message %q not found in response", wantErrMessage)
			return
		}

		var errorResp api.ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if wantErrMessage != "" && errorResp.Message != wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if wantErrMessage != "" && errorResp.Message != wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, wantErrMessage)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
