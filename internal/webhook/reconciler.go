// Package webhook translates inbound provider notifications into ledger
// status transitions. Providers deliver at-least-once with no ordering
// guarantee, so every outcome here is a definitive acknowledgment: the
// reconciler never retries on its own and never lets a ledger failure escape
// as a crash.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// Event is a provider notification, already delivered and parsed by the HTTP
// layer.
type Event struct {
	EventID        string
	TransactionID  string
	Provider       domain.PaymentProvider
	ReportedStatus domain.PaymentStatus
	RawPayload     json.RawMessage
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeNotFound  Outcome = "not_found"
)

// Ack is the structured acknowledgment returned to the HTTP layer so the
// provider always gets a definitive accept/reject response.
type Ack struct {
	Outcome Outcome
	Message string
	Payment *domain.Payment
}

const recentEventTTL = 24 * time.Hour

type Reconciler struct {
	ledger *ledger.Service
	redis  redis.UniversalClient
	logger *slog.Logger
}

// NewReconciler builds a reconciler. The Redis client is optional: it only
// short-circuits recently seen event ids; the database dedup recorded with
// the status flip stays authoritative.
func NewReconciler(ledgerService *ledger.Service, redisClient redis.UniversalClient, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger: ledgerService,
		redis:  redisClient,
		logger: logger,
	}
}

// Process applies one provider event to the ledger. The returned error is
// non-nil only for transient infrastructure failures, which the HTTP layer
// surfaces as a server error so the provider redelivers.
func (r *Reconciler) Process(ctx context.Context, event Event) (Ack, error) {
	if event.EventID == "" || event.TransactionID == "" {
		return Ack{Outcome: OutcomeRejected, Message: "event id and transaction id are required"}, nil
	}

	if !event.ReportedStatus.Valid() || event.ReportedStatus == domain.PaymentStatusRefunded {
		return Ack{Outcome: OutcomeRejected, Message: "unsupported reported status: " + string(event.ReportedStatus)}, nil
	}

	if r.seenRecently(ctx, event.EventID) {
		r.logger.Info("webhook event short-circuited as duplicate", "eventId", event.EventID, "provider", event.Provider)
		return Ack{Outcome: OutcomeDuplicate, Message: "event already processed"}, nil
	}

	payment, applied, err := r.ledger.ApplyStatusTransition(ctx, event.TransactionID, event.ReportedStatus, event.EventID)
	if err != nil {
		var transitionErr domain.InvalidTransitionError
		var validationErr domain.ValidationError

		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return Ack{Outcome: OutcomeNotFound, Message: "unknown transaction id: " + event.TransactionID}, nil
		case errors.As(err, &transitionErr):
			// Out-of-order delivery: the state machine rejects the
			// regression; report it, never apply it.
			r.logger.Warn("webhook transition rejected",
				"eventId", event.EventID,
				"transactionId", event.TransactionID,
				"from", transitionErr.From,
				"to", transitionErr.To,
			)
			return Ack{Outcome: OutcomeRejected, Message: transitionErr.Error()}, nil
		case errors.As(err, &validationErr):
			return Ack{Outcome: OutcomeRejected, Message: validationErr.Error()}, nil
		default:
			return Ack{}, err
		}
	}

	r.markSeen(ctx, event.EventID)

	if !applied {
		return Ack{Outcome: OutcomeDuplicate, Message: "event already applied", Payment: payment}, nil
	}

	return Ack{Outcome: OutcomeApplied, Payment: payment}, nil
}

func (r *Reconciler) seenRecently(ctx context.Context, eventID string) bool {
	if r.redis == nil {
		return false
	}

	seen, err := r.redis.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		// Cache unavailability is not an excuse to drop the event; the
		// database check catches actual duplicates.
		r.logger.Warn("webhook dedup cache unavailable", "error", err)
		return false
	}

	return seen > 0
}

func (r *Reconciler) markSeen(ctx context.Context, eventID string) {
	if r.redis == nil {
		return
	}

	if err := r.redis.Set(ctx, eventKey(eventID), "1", recentEventTTL).Err(); err != nil {
		r.logger.Warn("failed to record webhook event in dedup cache", "error", err)
	}
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}
