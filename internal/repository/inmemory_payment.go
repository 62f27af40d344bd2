package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
)

// InMemoryPaymentRepository implements the payment repository contract with
// the same compare-and-swap semantics as the Postgres implementation. Used by
// unit tests and local runs without a database.
type InMemoryPaymentRepository struct {
	mu       sync.Mutex
	nextID   int64
	payments map[string]*domain.Payment
	refunds  map[string][]*domain.Refund
	events   map[string]struct{}
}

func NewInMemoryPaymentRepository() *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		nextID:   1,
		payments: make(map[string]*domain.Payment),
		refunds:  make(map[string][]*domain.Refund),
		events:   make(map[string]struct{}),
	}
}

func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.TransactionID]; ok {
		return domain.ErrDuplicateTransaction
	}

	payment.ID = r.nextID
	r.nextID++
	payment.Version = 1
	payment.CreatedAt = time.Now().UTC()

	stored := clonePayment(payment)
	r.payments[payment.TransactionID] = stored

	return nil
}

func (r *InMemoryPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[transactionID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return clonePayment(payment), nil
}

func (r *InMemoryPaymentRepository) GetAll(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, *domain.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []*domain.Payment{}
	for _, payment := range r.payments {
		if filter.OwnerID != nil && payment.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != nil && payment.Status != *filter.Status {
			continue
		}
		if filter.CreatedFrom != nil && payment.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && payment.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		matched = append(matched, clonePayment(payment))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortDirection() == "DESC" {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	metadata := domain.NewMetadata(len(matched), filter.Page, filter.PageSize)

	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit()
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], metadata, nil
}

func (r *InMemoryPaymentRepository) ApplyTransition(
	ctx context.Context,
	transactionID string,
	expectedVersion int,
	next domain.PaymentStatus,
	completedAt *time.Time,
	eventID string,
) (*domain.Payment, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[transactionID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	if eventID != "" {
		if _, seen := r.events[eventID]; seen {
			return clonePayment(payment), domain.ErrEventAlreadyApplied
		}
	}

	if payment.Version != expectedVersion {
		return nil, domain.ErrEditConflict
	}

	if eventID != "" {
		r.events[eventID] = struct{}{}
	}

	payment.Status = next
	payment.Version++
	if completedAt != nil {
		payment.CompletedAt = completedAt
	}

	return clonePayment(payment), nil
}

func (r *InMemoryPaymentRepository) EventApplied(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, seen := r.events[eventID]
	return seen, nil
}

func (r *InMemoryPaymentRepository) AddRefund(ctx context.Context, refund *domain.Refund, expectedVersion int, markRefunded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[refund.TransactionID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	if payment.Version != expectedVersion {
		return domain.ErrEditConflict
	}

	payment.Version++
	if markRefunded {
		payment.Status = domain.PaymentStatusRefunded
	}

	stored := *refund
	r.refunds[refund.TransactionID] = append(r.refunds[refund.TransactionID], &stored)

	return nil
}

func (r *InMemoryPaymentRepository) RefundsByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	refunds := make([]*domain.Refund, 0, len(r.refunds[transactionID]))
	for _, refund := range r.refunds[transactionID] {
		copied := *refund
		refunds = append(refunds, &copied)
	}

	return refunds, nil
}

func clonePayment(payment *domain.Payment) *domain.Payment {
	copied := *payment

	if payment.Metadata != nil {
		copied.Metadata = make(map[string]string, len(payment.Metadata))
		for k, v := range payment.Metadata {
			copied.Metadata[k] = v
		}
	}
	if payment.CompletedAt != nil {
		completedAt := *payment.CompletedAt
		copied.CompletedAt = &completedAt
	}

	return &copied
}
