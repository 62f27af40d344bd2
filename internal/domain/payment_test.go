package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"pending to authorized", PaymentStatusPending, PaymentStatusAuthorized, true},
		{"pending to failed", PaymentStatusPending, PaymentStatusFailed, true},
		{"pending to canceled", PaymentStatusPending, PaymentStatusCanceled, true},
		{"pending to settled skips authorization", PaymentStatusPending, PaymentStatusSettled, false},
		{"authorized to settled", PaymentStatusAuthorized, PaymentStatusSettled, true},
		{"authorized to failed", PaymentStatusAuthorized, PaymentStatusFailed, true},
		{"authorized to canceled", PaymentStatusAuthorized, PaymentStatusCanceled, true},
		{"authorized back to pending", PaymentStatusAuthorized, PaymentStatusPending, false},
		{"settled to refunded", PaymentStatusSettled, PaymentStatusRefunded, true},
		{"settled to failed is a regression", PaymentStatusSettled, PaymentStatusFailed, false},
		{"settled to canceled", PaymentStatusSettled, PaymentStatusCanceled, false},
		{"failed is terminal", PaymentStatusFailed, PaymentStatusPending, false},
		{"refunded is terminal", PaymentStatusRefunded, PaymentStatusSettled, false},
		{"canceled is terminal", PaymentStatusCanceled, PaymentStatusAuthorized, false},
		{"no self transition", PaymentStatusPending, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCanceled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
		assert.Empty(t, statusTransitions[s], "%s should have no outgoing transitions", s)
	}

	open := []PaymentStatus{PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusSettled}
	for _, s := range open {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestPaymentMethodValidate(t *testing.T) {
	card := &CardDetails{Brand: "visa", Last4: "4242", ExpirationDate: "12/30"}
	bank := &BankTransferDetails{RoutingNumber: "021000021", AccountLast4: "6789", BankName: "Chase"}
	wallet := &WalletDetails{WalletID: "wallet-123"}

	tests := []struct {
		name    string
		method  PaymentMethod
		wantErr bool
	}{
		{"credit card with card details", PaymentMethod{Type: PaymentMethodCreditCard, Card: card}, false},
		{"bank transfer with bank details", PaymentMethod{Type: PaymentMethodBankTransfer, BankTransfer: bank}, false},
		{"wallet with wallet details", PaymentMethod{Type: PaymentMethodWallet, Wallet: wallet}, false},
		{"credit card without card details", PaymentMethod{Type: PaymentMethodCreditCard}, true},
		{"tag and variant mismatch", PaymentMethod{Type: PaymentMethodWallet, Card: card}, true},
		{"multiple variants", PaymentMethod{Type: PaymentMethodCreditCard, Card: card, Wallet: wallet}, true},
		{"unknown type", PaymentMethod{Type: "crypto"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.method.Validate()
			if tt.wantErr {
				var validationErr ValidationError
				assert.ErrorAs(t, err, &validationErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
