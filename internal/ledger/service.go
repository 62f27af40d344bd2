// Package ledger owns the payment and refund lifecycle: creation, the status
// state machine, and refund accounting. All status writes go through a
// compare-and-swap on the payment version so concurrent webhook deliveries and
// API updates for the same payment serialize instead of clobbering each other.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/payflowhq/payflow/internal/domain"
)

// maxCASAttempts bounds the reload-and-retry loop on version conflicts.
// Unrelated payments never contend, so conflicts only come from concurrent
// events for the same transaction.
const maxCASAttempts = 3

// paymentSortSafelist enumerates the sort keys ListPayments accepts. The sort
// value reaches the repository's ORDER BY clause, so anything outside this
// list is rejected before the query is built.
var paymentSortSafelist = map[string]bool{
	"id": true, "created_at": true, "amount": true, "status": true,
}

// Notifier receives fire-and-forget lifecycle notifications. Implementations
// must never block and never return an error into the payment flow.
type Notifier interface {
	PaymentSettled(payment *domain.Payment)
	RefundIssued(payment *domain.Payment, refund *domain.Refund)
}

type noopNotifier struct{}

func (noopNotifier) PaymentSettled(*domain.Payment)               {}
func (noopNotifier) RefundIssued(*domain.Payment, *domain.Refund) {}

type Service struct {
	payments   domain.PaymentRepository
	currencies domain.CurrencyRepository
	notifier   Notifier
	logger     *slog.Logger
}

func NewService(payments domain.PaymentRepository, currencies domain.CurrencyRepository, notifier Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Service{
		payments:   payments,
		currencies: currencies,
		notifier:   notifier,
		logger:     logger,
	}
}

type CreatePaymentParams struct {
	OwnerID  int64
	Amount   int64
	Currency string
	Provider domain.PaymentProvider
	Method   domain.PaymentMethod
	Metadata map[string]string
	Locale   *string
}

func (s *Service) CreatePayment(ctx context.Context, params CreatePaymentParams) (*domain.Payment, error) {
	if params.Amount <= 0 {
		return nil, domain.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	amount, err := domain.NewMoney(params.Amount, params.Currency)
	if err != nil {
		return nil, err
	}

	if !params.Provider.Valid() {
		return nil, domain.ValidationError{Field: "provider", Reason: "unknown payment provider"}
	}

	if err := params.Method.Validate(); err != nil {
		return nil, err
	}

	currency, err := s.currencies.GetByCode(ctx, amount.Currency)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ValidationError{Field: "currency", Reason: "unknown currency"}
		}
		return nil, err
	}

	if !currency.Active {
		return nil, domain.ValidationError{Field: "currency", Reason: "currency is not active"}
	}

	payment := &domain.Payment{
		TransactionID: uuid.NewString(),
		OwnerID:       params.OwnerID,
		Amount:        amount,
		Provider:      params.Provider,
		Method:        params.Method,
		Status:        domain.PaymentStatusPending,
		Metadata:      params.Metadata,
		Locale:        params.Locale,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		"transactionId", payment.TransactionID,
		"ownerId", payment.OwnerID,
		"amount", payment.Amount.Amount,
		"currency", payment.Amount.Currency,
		"provider", payment.Provider,
	)

	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return s.payments.GetByTransactionID(ctx, transactionID)
}

func (s *Service) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, *domain.Metadata, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Sort == "" {
		filter.Sort = "-created_at"
	}
	if !paymentSortSafelist[filter.SortColumn()] {
		return nil, nil, domain.ValidationError{Field: "sort", Reason: "must be one of id, created_at, amount, status, optionally prefixed with - for descending"}
	}

	return s.payments.GetAll(ctx, filter)
}

// ApplyStatusTransition is the sole status mutator, used by both the API
// layer and the webhook reconciler. The returned bool reports whether the
// call actually changed the record; a replayed event or an already-current
// status is a no-op that returns the current record.
func (s *Service) ApplyStatusTransition(ctx context.Context, transactionID string, next domain.PaymentStatus, eventID string) (*domain.Payment, bool, error) {
	if !next.Valid() {
		return nil, false, domain.ValidationError{Field: "status", Reason: "unknown payment status"}
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		payment, err := s.payments.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, false, err
		}

		if payment.Status == next {
			return payment, false, nil
		}

		// A redelivered event must stay a no-op even when the payment has
		// moved on since it was first applied, so the dedup check runs
		// before the transition table gets a say.
		if eventID != "" {
			applied, err := s.payments.EventApplied(ctx, eventID)
			if err != nil {
				return nil, false, err
			}
			if applied {
				return payment, false, nil
			}
		}

		if !payment.Status.CanTransitionTo(next) {
			return nil, false, domain.InvalidTransitionError{
				TransactionID: transactionID,
				From:          payment.Status,
				To:            next,
			}
		}

		var completedAt *time.Time
		if next == domain.PaymentStatusSettled {
			now := time.Now().UTC()
			completedAt = &now
		}

		updated, err := s.payments.ApplyTransition(ctx, transactionID, payment.Version, next, completedAt, eventID)
		switch {
		case errors.Is(err, domain.ErrEditConflict):
			continue
		case errors.Is(err, domain.ErrEventAlreadyApplied):
			return payment, false, nil
		case err != nil:
			return nil, false, err
		}

		s.logger.Info("payment status transition",
			"transactionId", transactionID,
			"from", payment.Status,
			"to", next,
			"eventId", eventID,
		)

		if next == domain.PaymentStatusSettled {
			s.notifier.PaymentSettled(updated)
		}

		return updated, true, nil
	}

	return nil, false, domain.ErrEditConflict
}

// RefundPayment records a refund against a settled payment. A nil amount
// refunds the full remaining balance; refunding the last of the balance flips
// the payment to refunded in the same write.
func (s *Service) RefundPayment(ctx context.Context, transactionID string, amount *domain.Money) (*domain.Refund, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		payment, err := s.payments.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, err
		}

		if payment.Status != domain.PaymentStatusSettled {
			return nil, domain.InvalidStateError{
				TransactionID: transactionID,
				Status:        payment.Status,
				Reason:        "only settled payments can be refunded",
			}
		}

		remaining, err := s.remainingBalance(ctx, payment)
		if err != nil {
			return nil, err
		}

		refundAmount := remaining
		if amount != nil {
			if amount.Currency != payment.Amount.Currency {
				return nil, domain.ValidationError{Field: "amount", Reason: "refund currency must match the payment currency"}
			}
			refundAmount = *amount
		}

		if refundAmount.Amount <= 0 {
			return nil, domain.ValidationError{Field: "amount", Reason: "must be greater than zero"}
		}

		if refundAmount.Amount > remaining.Amount {
			return nil, domain.ValidationError{Field: "amount", Reason: "exceeds remaining refundable balance"}
		}

		refund := &domain.Refund{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			Amount:        refundAmount,
			Status:        domain.RefundStatusCompleted,
			RefundedAt:    time.Now().UTC(),
		}

		fullyRefunded := refundAmount.Amount == remaining.Amount

		err = s.payments.AddRefund(ctx, refund, payment.Version, fullyRefunded)
		if errors.Is(err, domain.ErrEditConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("refund recorded",
			"transactionId", transactionID,
			"refundId", refund.ID,
			"amount", refund.Amount.Amount,
			"fullyRefunded", fullyRefunded,
		)

		s.notifier.RefundIssued(payment, refund)

		return refund, nil
	}

	return nil, domain.ErrEditConflict
}

// ListRefunds returns all refunds recorded against a payment, confirming the
// payment exists first so an unknown transaction id surfaces as not found
// instead of an empty list.
func (s *Service) ListRefunds(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	if _, err := s.payments.GetByTransactionID(ctx, transactionID); err != nil {
		return nil, err
	}

	return s.payments.RefundsByTransactionID(ctx, transactionID)
}

func (s *Service) remainingBalance(ctx context.Context, payment *domain.Payment) (domain.Money, error) {
	refunds, err := s.payments.RefundsByTransactionID(ctx, payment.TransactionID)
	if err != nil {
		return domain.Money{}, err
	}

	remaining := payment.Amount
	for _, refund := range refunds {
		remaining, err = remaining.Sub(refund.Amount)
		if err != nil {
			return domain.Money{}, err
		}
	}

	return remaining, nil
}
