package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Payment creation replays: a client retrying a POST with the same
// Idempotency-Key header gets back the payment created by the first attempt
// instead of a second charge. The mapping lives in Redis with a TTL; losing it
// degrades to normal (non-idempotent) behavior rather than failing requests.

const idempotencyKeyTTL = 24 * time.Hour

func idempotencyKey(r *http.Request) string {
	return r.Header.Get("Idempotency-Key")
}

func idempotencyRedisKey(key string) string {
	return "idempotency:payment:" + key
}

func (app *application) replayIdempotentPayment(ctx context.Context, key string) (*domain.Payment, bool) {
	if app.redis == nil || key == "" {
		return nil, false
	}

	transactionID, err := app.redis.Get(ctx, idempotencyRedisKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			app.logger.Warn("idempotency cache unavailable", "error", err)
		}
		return nil, false
	}

	payment, err := app.ledger.GetPayment(ctx, transactionID)
	if err != nil {
		app.logger.Warn("idempotency key points at missing payment", "key", key, "transactionId", transactionID)
		return nil, false
	}

	return payment, true
}

func (app *application) rememberIdempotentPayment(ctx context.Context, key, transactionID string) {
	if app.redis == nil || key == "" {
		return
	}

	err := app.redis.SetNX(ctx, idempotencyRedisKey(key), transactionID, idempotencyKeyTTL).Err()
	if err != nil {
		app.logger.Warn("failed to record idempotency key", "key", key, "error", err)
	}
}
