package domain

import (
	"context"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusSettled    PaymentStatus = "settled"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

// statusTransitions is the authoritative state machine table. The refunded
// transition is driven by the refund operation only, never applied directly
// from a provider event.
var statusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusAuthorized, PaymentStatusFailed, PaymentStatusCanceled},
	PaymentStatusAuthorized: {PaymentStatusSettled, PaymentStatusFailed, PaymentStatusCanceled},
	PaymentStatusSettled:    {PaymentStatusRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusSettled,
		PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further status transitions are accepted.
// Settled is terminal with respect to the authorize/settle flow but still
// accepts refunds until fully refunded.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCanceled:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentProvider string

const (
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderVenmo  PaymentProvider = "venmo"
)

func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentProviderPayPal, PaymentProviderStripe, PaymentProviderVenmo:
		return true
	}
	return false
}

type PaymentMethodType string

const (
	PaymentMethodCreditCard   PaymentMethodType = "credit_card"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodWallet       PaymentMethodType = "wallet"
)

type CardDetails struct {
	Brand          string `json:"brand"`
	Last4          string `json:"last4"`
	ExpirationDate string `json:"expirationDate"`
}

type BankTransferDetails struct {
	RoutingNumber string `json:"routingNumber"`
	AccountLast4  string `json:"accountLast4"`
	BankName      string `json:"bankName"`
}

type WalletDetails struct {
	WalletID string `json:"walletId"`
}

// PaymentMethod is a tagged union keyed by Type: exactly one of the detail
// variants must be set, and it must match the tag.
type PaymentMethod struct {
	Type         PaymentMethodType    `json:"type"`
	Card         *CardDetails         `json:"card,omitempty"`
	BankTransfer *BankTransferDetails `json:"bankTransfer,omitempty"`
	Wallet       *WalletDetails       `json:"wallet,omitempty"`
}

func (pm PaymentMethod) Validate() error {
	variants := 0
	if pm.Card != nil {
		variants++
	}
	if pm.BankTransfer != nil {
		variants++
	}
	if pm.Wallet != nil {
		variants++
	}

	if variants > 1 {
		return ValidationError{Field: "paymentMethod", Reason: "at most one detail variant may be set"}
	}

	switch pm.Type {
	case PaymentMethodCreditCard:
		if pm.Card == nil {
			return ValidationError{Field: "paymentMethod.card", Reason: "required for credit_card"}
		}
	case PaymentMethodBankTransfer:
		if pm.BankTransfer == nil {
			return ValidationError{Field: "paymentMethod.bankTransfer", Reason: "required for bank_transfer"}
		}
	case PaymentMethodWallet:
		if pm.Wallet == nil {
			return ValidationError{Field: "paymentMethod.wallet", Reason: "required for wallet"}
		}
	default:
		return ValidationError{Field: "paymentMethod.type", Reason: "unknown payment method type"}
	}

	return nil
}

type Payment struct {
	ID            int64
	TransactionID string
	ProviderRef   *string
	OwnerID       int64
	Amount        Money
	Provider      PaymentProvider
	Method        PaymentMethod
	Status        PaymentStatus
	Metadata      map[string]string
	Locale        *string
	Version       int
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

type RefundStatus string

const RefundStatusCompleted RefundStatus = "completed"

// Refund amounts are stored non-negative; the remaining refundable balance of
// the payment is the invariant, not a sign convention.
type Refund struct {
	ID            string
	TransactionID string
	Amount        Money
	Status        RefundStatus
	RefundedAt    time.Time
}

type PaymentFilter struct {
	OwnerID     *int64
	Status      *PaymentStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Pagination
}

// PaymentRepository owns Payment and Refund rows. Status writes are
// compare-and-swap on the version column so concurrent transitions for the
// same payment cannot both succeed.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	GetAll(ctx context.Context, filter PaymentFilter) ([]*Payment, *Metadata, error)

	// ApplyTransition flips the status iff the stored version still matches
	// expectedVersion, recording eventID (when non-empty) in the same
	// transaction. Returns ErrEditConflict on a version mismatch and
	// ErrEventAlreadyApplied when eventID was seen before.
	ApplyTransition(ctx context.Context, transactionID string, expectedVersion int, next PaymentStatus, completedAt *time.Time, eventID string) (*Payment, error)

	// EventApplied reports whether a provider event id has already been
	// recorded by a successful transition.
	EventApplied(ctx context.Context, eventID string) (bool, error)

	// AddRefund records the refund and bumps the payment version in one
	// transaction, flipping the payment to refunded when markRefunded is set.
	// Returns ErrEditConflict on a version mismatch.
	AddRefund(ctx context.Context, refund *Refund, expectedVersion int, markRefunded bool) error

	RefundsByTransactionID(ctx context.Context, transactionID string) ([]*Refund, error)
}
