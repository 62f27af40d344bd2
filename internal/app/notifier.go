package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/mailer"
)

// metadataEmailKey is where clients attach the payer's email on payment
// creation. Payments without it simply get no notifications.
const metadataEmailKey = "email"

// mailerNotifier sends lifecycle emails on a background goroutine so a slow
// or broken SMTP server never stalls a payment write.
type mailerNotifier struct {
	mailer     mailer.Mailer
	currencies domain.CurrencyRepository
	logger     *slog.Logger
}

func newMailerNotifier(m mailer.Mailer, currencies domain.CurrencyRepository, logger *slog.Logger) *mailerNotifier {
	return &mailerNotifier{
		mailer:     m,
		currencies: currencies,
		logger:     logger,
	}
}

func (n *mailerNotifier) PaymentSettled(payment *domain.Payment) {
	recipient, ok := payment.Metadata[metadataEmailKey]
	if !ok {
		return
	}

	data := map[string]any{
		"Amount":        n.formatAmount(payment.Amount),
		"Provider":      string(payment.Provider),
		"TransactionID": payment.TransactionID,
	}

	n.send(recipient, "payment_confirmation.tmpl", data, payment.TransactionID)
}

func (n *mailerNotifier) RefundIssued(payment *domain.Payment, refund *domain.Refund) {
	recipient, ok := payment.Metadata[metadataEmailKey]
	if !ok {
		return
	}

	data := map[string]any{
		"Amount":        n.formatAmount(refund.Amount),
		"TransactionID": payment.TransactionID,
		"RefundID":      refund.ID,
	}

	n.send(recipient, "refund_notice.tmpl", data, payment.TransactionID)
}

func (n *mailerNotifier) send(recipient, template string, data map[string]any, transactionID string) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				n.logger.Error("notification goroutine panicked", "error", err)
			}
		}()

		err := n.mailer.Send(recipient, template, data)
		if err != nil {
			n.logger.Error("failed to send notification email",
				"template", template,
				"transactionId", transactionID,
				"error", err,
			)
		}
	}()
}

func (n *mailerNotifier) formatAmount(amount domain.Money) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	currency, err := n.currencies.GetByCode(ctx, amount.Currency)
	if err != nil {
		// Fall back to an unadorned rendering rather than dropping the mail.
		return amount.Major(2).StringFixed(2) + " " + amount.Currency
	}

	return amount.Format(*currency)
}
