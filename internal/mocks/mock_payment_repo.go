package mocks

import (
	"context"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentRepo struct {
	mock.Mock
	domain.PaymentRepository
}

func (m *MockPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	args := m.Called(ctx, transactionID)
	payment, _ := args.Get(0).(*domain.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentRepo) GetAll(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, *domain.Metadata, error) {
	args := m.Called(ctx, filter)
	payments, _ := args.Get(0).([]*domain.Payment)
	metadata, _ := args.Get(1).(*domain.Metadata)
	return payments, metadata, args.Error(2)
}

func (m *MockPaymentRepo) ApplyTransition(
	ctx context.Context,
	transactionID string,
	expectedVersion int,
	next domain.PaymentStatus,
	completedAt *time.Time,
	eventID string,
) (*domain.Payment, error) {
	args := m.Called(ctx, transactionID, expectedVersion, next, completedAt, eventID)
	payment, _ := args.Get(0).(*domain.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentRepo) EventApplied(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepo) AddRefund(ctx context.Context, refund *domain.Refund, expectedVersion int, markRefunded bool) error {
	args := m.Called(ctx, refund, expectedVersion, markRefunded)
	return args.Error(0)
}

func (m *MockPaymentRepo) RefundsByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	args := m.Called(ctx, transactionID)
	refunds, _ := args.Get(0).([]*domain.Refund)
	return refunds, args.Error(1)
}
