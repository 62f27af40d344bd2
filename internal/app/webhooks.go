package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/payflowhq/payflow/api"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/webhook"
)

// ProviderWebhookHandler ingests provider notifications. Every recognized
// event gets a 200 with a definitive outcome so the provider stops
// redelivering; only transient infrastructure failures return a 5xx.
func (app *application) ProviderWebhookHandler(w http.ResponseWriter, r *http.Request) {
	provider := domain.PaymentProvider(chi.URLParam(r, "provider"))
	if !provider.Valid() {
		app.errorResponse(w, r, http.StatusNotFound, "unknown payment provider: "+string(provider))
		return
	}

	var req api.WebhookRequest

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

	ack, err := app.reconciler.Process(r.Context(), webhook.Event{
		EventID:        req.EventID,
		TransactionID:  req.TransactionID,
		Provider:       provider,
		ReportedStatus: domain.PaymentStatus(req.Status),
		RawPayload:     req.Payload,
	})
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.WebhookResponse{
		Outcome: string(ack.Outcome),
		Message: ack.Message,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
