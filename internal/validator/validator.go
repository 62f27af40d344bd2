package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var currencyCodeRgx = regexp.MustCompile(`^[A-Z]{3}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("currency_code", validateCurrencyCode)
	validator.RegisterValidation("payment_provider", validatePaymentProvider)
	validator.RegisterValidation("payment_status", validatePaymentStatus)

	return validator
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodeRgx.MatchString(fl.Field().String())
}

func validatePaymentProvider(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "paypal", "stripe", "venmo":
		return true
	}
	return false
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "pending", "authorized", "settled", "failed", "refunded", "canceled":
		return true
	}
	return false
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", err.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "currency_code":
		return "must be a 3-letter uppercase ISO 4217 code"
	case "payment_provider":
		return "must be one of: paypal, stripe, venmo"
	case "payment_status":
		return "is not a known payment status"
	default:
		return "is invalid"
	}
}
