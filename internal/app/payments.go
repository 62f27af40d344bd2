package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/payflowhq/payflow/api"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/ledger"
)

func (app *application) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePaymentRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	key := idempotencyKey(r)
	if payment, ok := app.replayIdempotentPayment(r.Context(), key); ok {
		app.writeJSON(w, http.StatusOK, toPaymentResponse(payment), nil)
		return
	}

	payment, err := app.ledger.CreatePayment(r.Context(), ledger.CreatePaymentParams{
		OwnerID:  req.OwnerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Provider: domain.PaymentProvider(req.Provider),
		Method:   toDomainMethod(req),
		Metadata: req.Metadata,
		Locale:   req.Locale,
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.rememberIdempotentPayment(r.Context(), key, payment.TransactionID)

	headers := make(http.Header)
	headers.Set("Location", "/payments/"+payment.TransactionID)

	err = app.writeJSON(w, http.StatusCreated, toPaymentResponse(payment), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	payment, err := app.ledger.GetPayment(r.Context(), transactionID)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toPaymentResponse(payment), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	var filter domain.PaymentFilter

	page, err := app.readInt(qs, "page", 1)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	filter.Page = page

	pageSize, err := app.readInt(qs, "pageSize", 20)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	filter.PageSize = pageSize

	filter.Sort = app.readString(qs, "sort", "-created_at")

	if owner, err := app.readInt(qs, "ownerId", 0); err != nil {
		app.badRequestResponse(w, r, err)
		return
	} else if owner > 0 {
		ownerID := int64(owner)
		filter.OwnerID = &ownerID
	}

	if s := app.readString(qs, "status", ""); s != "" {
		status := domain.PaymentStatus(s)
		if !status.Valid() {
			app.errorResponse(w, r, http.StatusUnprocessableEntity, "status: is not a known payment status")
			return
		}
		filter.Status = &status
	}

	if from, ok, err := parseTimeParam(app.readString(qs, "createdFrom", "")); err != nil {
		app.badRequestResponse(w, r, err)
		return
	} else if ok {
		filter.CreatedFrom = &from
	}

	if to, ok, err := parseTimeParam(app.readString(qs, "createdTo", "")); err != nil {
		app.badRequestResponse(w, r, err)
		return
	} else if ok {
		filter.CreatedTo = &to
	}

	payments, metadata, err := app.ledger.ListPayments(r.Context(), filter)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.PaymentListResponse{
		Payments: make([]api.PaymentResponse, 0, len(payments)),
		Metadata: api.PaginationMeta{
			CurrentPage:  metadata.CurrentPage,
			FirstPage:    metadata.FirstPage,
			LastPage:     metadata.LastPage,
			PageSize:     metadata.PageSize,
			TotalRecords: metadata.TotalRecords,
		},
	}

	for _, payment := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(payment))
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) CreateRefundHandler(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	var req api.RefundRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	// A partial refund amount is in the payment's own currency, so the
	// payment is loaded first to resolve it.
	var amount *domain.Money
	if req.Amount != nil {
		payment, err := app.ledger.GetPayment(r.Context(), transactionID)
		if err != nil {
			app.domainErrorResponse(w, r, err)
			return
		}

		amount = &domain.Money{Amount: *req.Amount, Currency: payment.Amount.Currency}
	}

	refund, err := app.ledger.RefundPayment(r.Context(), transactionID, amount)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, toRefundResponse(refund), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ListRefundsHandler(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	refunds, err := app.ledger.ListRefunds(r.Context(), transactionID)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.RefundListResponse{
		Refunds: make([]api.RefundResponse, 0, len(refunds)),
	}

	for _, refund := range refunds {
		resp.Refunds = append(resp.Refunds, toRefundResponse(refund))
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toDomainMethod(req api.CreatePaymentRequest) domain.PaymentMethod {
	method := domain.PaymentMethod{Type: domain.PaymentMethodType(req.MethodType)}

	if req.Card != nil {
		method.Card = &domain.CardDetails{
			Brand:          req.Card.Brand,
			Last4:          req.Card.Last4,
			ExpirationDate: req.Card.ExpirationDate,
		}
	}
	if req.BankTransfer != nil {
		method.BankTransfer = &domain.BankTransferDetails{
			RoutingNumber: req.BankTransfer.RoutingNumber,
			AccountLast4:  req.BankTransfer.AccountLast4,
			BankName:      req.BankTransfer.BankName,
		}
	}
	if req.Wallet != nil {
		method.Wallet = &domain.WalletDetails{
			WalletID: req.Wallet.WalletID,
		}
	}

	return method
}

func toPaymentResponse(payment *domain.Payment) api.PaymentResponse {
	return api.PaymentResponse{
		TransactionID: payment.TransactionID,
		ProviderRef:   payment.ProviderRef,
		OwnerID:       payment.OwnerID,
		Amount:        payment.Amount.Amount,
		Currency:      payment.Amount.Currency,
		Provider:      string(payment.Provider),
		MethodType:    string(payment.Method.Type),
		Status:        string(payment.Status),
		Metadata:      payment.Metadata,
		Locale:        payment.Locale,
		CreatedAt:     payment.CreatedAt,
		CompletedAt:   payment.CompletedAt,
	}
}

func toRefundResponse(refund *domain.Refund) api.RefundResponse {
	return api.RefundResponse{
		ID:            refund.ID,
		TransactionID: refund.TransactionID,
		Amount:        refund.Amount.Amount,
		Currency:      refund.Amount.Currency,
		Status:        string(refund.Status),
		RefundedAt:    refund.RefundedAt,
	}
}

func parseTimeParam(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, errors.New("time filters must be RFC 3339 timestamps")
	}

	return t, true, nil
}
