package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/payflowhq/payflow/api"
	appvalidator "github.com/payflowhq/payflow/internal/validator"

	"github.com/payflowhq/payflow/internal/domain"
)

func (app *application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "The server encountered a problem and could not process your request"
	app.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource not found"
	app.errorResponse(w, r, http.StatusNotFound, message)
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "Unable to update the record due to a conflict, please try again"
	app.errorResponse(w, r, http.StatusConflict, message)
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	validationErrors := make([]api.ValidationError, 0, len(errs))

	for _, fieldErr := range errs {
		validationErrors = append(validationErrors, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	resp := api.ValidationErrorResponse{
		Message:          "The request contains invalid fields",
		ValidationErrors: validationErrors,
	}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

// domainErrorResponse maps the error taxonomy of the inner services onto HTTP
// statuses. Anything unrecognized falls through as a server error.
func (app *application) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr domain.ValidationError
	var transitionErr domain.InvalidTransitionError
	var stateErr domain.InvalidStateError
	var rateErr domain.RateUnavailableError
	var transientErr domain.TransientIOError

	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, domain.ErrEditConflict):
		app.editConflictResponse(w, r)
	case errors.Is(err, domain.ErrDuplicateTransaction):
		app.errorResponse(w, r, http.StatusConflict, "a payment with this transaction id already exists")
	case errors.As(err, &validationErr):
		app.errorResponse(w, r, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.As(err, &transitionErr):
		app.errorResponse(w, r, http.StatusConflict, transitionErr.Error())
	case errors.As(err, &stateErr):
		app.errorResponse(w, r, http.StatusConflict, stateErr.Error())
	case errors.As(err, &rateErr):
		app.errorResponse(w, r, http.StatusServiceUnavailable, rateErr.Error())
	case errors.As(err, &transientErr):
		app.errorResponse(w, r, http.StatusServiceUnavailable, transientErr.Error())
	default:
		app.serverErrorResponse(w, r, err)
	}
}
