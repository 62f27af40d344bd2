package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrEditConflict         = errors.New("edit conflict")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	ErrEventAlreadyApplied  = errors.New("event already applied")
)

// ValidationError reports malformed or out-of-range input. Not retryable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a payment status transition that is not
// present in the state machine table.
type InvalidTransitionError struct {
	TransactionID string
	From          PaymentStatus
	To            PaymentStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("payment %s: invalid transition from %s to %s", e.TransactionID, e.From, e.To)
}

// InvalidStateError reports an operation attempted against a payment whose
// current status does not allow it, e.g. refunding an unsettled payment.
type InvalidStateError struct {
	TransactionID string
	Status        PaymentStatus
	Reason        string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("payment %s is %s: %s", e.TransactionID, e.Status, e.Reason)
}

// RateUnavailableError reports missing or unusable conversion data. The
// caller may retry after the next rate refresh.
type RateUnavailableError struct {
	Base   string
	Target string
	Reason string
}

func (e RateUnavailableError) Error() string {
	return fmt.Sprintf("no usable rate for %s/%s: %s", e.Base, e.Target, e.Reason)
}

// TransientIOError wraps a network or store failure that the job scheduler
// retries with backoff. Direct API callers see it as a server error.
type TransientIOError struct {
	Op  string
	Err error
}

func (e TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e TransientIOError) Unwrap() error {
	return e.Err
}
