package integration_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/ledger"
	"github.com/payflowhq/payflow/internal/webhook"
)

type PaymentLifecycleSuite struct {
	BaseSuite
}

func (s *PaymentLifecycleSuite) createPayment(amount int64) *domain.Payment {
	payment, err := s.stack.Ledger.CreatePayment(context.Background(), ledger.CreatePaymentParams{
		OwnerID:  42,
		Amount:   amount,
		Currency: "USD",
		Provider: domain.PaymentProviderStripe,
		Method: domain.PaymentMethod{
			Type: domain.PaymentMethodCreditCard,
			Card: &domain.CardDetails{Brand: "visa", Last4: "4242", ExpirationDate: "12/30"},
		},
		Metadata: map[string]string{"order": "ord-1001"},
	})
	s.Require().NoError(err)

	return payment
}

func (s *PaymentLifecycleSuite) deliver(transactionID, eventID string, status domain.PaymentStatus) webhook.Ack {
	ack, err := s.stack.Reconciler.Process(context.Background(), webhook.Event{
		EventID:        eventID,
		TransactionID:  transactionID,
		Provider:       domain.PaymentProviderStripe,
		ReportedStatus: status,
	})
	s.Require().NoError(err)

	return ack
}

func (s *PaymentLifecycleSuite) TestFullLifecycle() {
	ctx := context.Background()

	payment := s.createPayment(10000)
	s.Equal(domain.PaymentStatusPending, payment.Status)
	s.Equal(1, payment.Version)

	authEvent := uuid.NewString()
	ack := s.deliver(payment.TransactionID, authEvent, domain.PaymentStatusAuthorized)
	s.Equal(webhook.OutcomeApplied, ack.Outcome)

	// Provider redelivery of the same event must not double-apply.
	ack = s.deliver(payment.TransactionID, authEvent, domain.PaymentStatusAuthorized)
	s.Equal(webhook.OutcomeDuplicate, ack.Outcome)

	ack = s.deliver(payment.TransactionID, uuid.NewString(), domain.PaymentStatusSettled)
	s.Equal(webhook.OutcomeApplied, ack.Outcome)
	s.Require().NotNil(ack.Payment)
	s.NotNil(ack.Payment.CompletedAt)

	// The authorize event redelivered after settlement still acks as a
	// duplicate, even though authorized is no longer reachable.
	ack = s.deliver(payment.TransactionID, authEvent, domain.PaymentStatusAuthorized)
	s.Equal(webhook.OutcomeDuplicate, ack.Outcome)

	// The same replay straight through the ledger, bypassing the webhook
	// dedup cache, is likewise a no-op on the settled record.
	replayed, applied, err := s.stack.Ledger.ApplyStatusTransition(ctx, payment.TransactionID, domain.PaymentStatusAuthorized, authEvent)
	s.Require().NoError(err)
	s.False(applied)
	s.Equal(domain.PaymentStatusSettled, replayed.Status)

	// Late pending event after settlement is rejected, never applied.
	ack = s.deliver(payment.TransactionID, uuid.NewString(), domain.PaymentStatusPending)
	s.Equal(webhook.OutcomeRejected, ack.Outcome)

	partial := domain.Money{Amount: 4000, Currency: "USD"}
	refund, err := s.stack.Ledger.RefundPayment(ctx, payment.TransactionID, &partial)
	s.Require().NoError(err)
	s.Equal(int64(4000), refund.Amount.Amount)

	current, err := s.stack.Ledger.GetPayment(ctx, payment.TransactionID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusSettled, current.Status)

	// Refunding the rest flips the payment to refunded.
	refund, err = s.stack.Ledger.RefundPayment(ctx, payment.TransactionID, nil)
	s.Require().NoError(err)
	s.Equal(int64(6000), refund.Amount.Amount)

	current, err = s.stack.Ledger.GetPayment(ctx, payment.TransactionID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusRefunded, current.Status)
	s.NotNil(current.CompletedAt)

	one := domain.Money{Amount: 1, Currency: "USD"}
	_, err = s.stack.Ledger.RefundPayment(ctx, payment.TransactionID, &one)
	s.Error(err)

	refunds, err := s.stack.Ledger.ListRefunds(ctx, payment.TransactionID)
	s.Require().NoError(err)
	s.Len(refunds, 2)
}

func (s *PaymentLifecycleSuite) TestConcurrentTransitionsSerialize() {
	payment := s.createPayment(5000)

	const workers = 8

	var wg sync.WaitGroup
	outcomes := make(chan webhook.Outcome, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ack, err := s.stack.Reconciler.Process(context.Background(), webhook.Event{
				EventID:        uuid.NewString(),
				TransactionID:  payment.TransactionID,
				Provider:       domain.PaymentProviderStripe,
				ReportedStatus: domain.PaymentStatusAuthorized,
			})
			if err == nil {
				outcomes <- ack.Outcome
			}
		}()
	}

	wg.Wait()
	close(outcomes)

	applied := 0
	for outcome := range outcomes {
		if outcome == webhook.OutcomeApplied {
			applied++
		}
	}

	// Distinct event ids all reporting the same target status: one write
	// wins, the rest observe the status as already current.
	s.Equal(1, applied)

	current, err := s.stack.Ledger.GetPayment(context.Background(), payment.TransactionID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusAuthorized, current.Status)
}

func (s *PaymentLifecycleSuite) TestDuplicateTransactionIDRejected() {
	ctx := context.Background()

	payment := s.createPayment(1500)

	dup := *payment
	dup.ID = 0
	err := s.stack.PaymentRepo.Create(ctx, &dup)
	s.ErrorIs(err, domain.ErrDuplicateTransaction)
}

func (s *PaymentLifecycleSuite) TestUnknownCurrencyRejected() {
	_, err := s.stack.Ledger.CreatePayment(context.Background(), ledger.CreatePaymentParams{
		OwnerID:  42,
		Amount:   100,
		Currency: "ZZZ",
		Provider: domain.PaymentProviderPayPal,
		Method: domain.PaymentMethod{
			Type:   domain.PaymentMethodWallet,
			Wallet: &domain.WalletDetails{WalletID: "w-1"},
		},
	})

	var validationErr domain.ValidationError
	s.ErrorAs(err, &validationErr)
}
