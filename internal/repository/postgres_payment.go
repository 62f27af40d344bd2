package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflowhq/payflow/internal/domain"
)

type PostgresPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

func (p *PostgresPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	method, err := json.Marshal(payment.Method)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			transaction_id,
			provider_ref,
			owner_id,
			amount,
			currency,
			provider,
			method,
			status,
			metadata,
			locale
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, version, created_at
	`

	err = p.db.QueryRow(
		ctx,
		query,
		payment.TransactionID,
		payment.ProviderRef,
		payment.OwnerID,
		payment.Amount.Amount,
		payment.Amount.Currency,
		payment.Provider,
		method,
		payment.Status,
		metadata,
		payment.Locale,
	).Scan(&payment.ID, &payment.Version, &payment.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateTransaction
		}

		return err
	}

	return nil
}

func (p *PostgresPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	query := `
		SELECT id, transaction_id, provider_ref, owner_id, amount, currency,
			provider, method, status, metadata, locale, version, created_at, completed_at
		FROM payments
		WHERE transaction_id = $1
	`

	payment, err := scanPayment(p.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return payment, nil
}

func (p *PostgresPaymentRepository) GetAll(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, *domain.Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, transaction_id, provider_ref, owner_id, amount, currency,
			provider, method, status, metadata, locale, version, created_at, completed_at
		FROM payments
		WHERE ($1::bigint IS NULL OR owner_id = $1)
			AND ($2::text IS NULL OR status = $2)
			AND ($3::timestamptz IS NULL OR created_at >= $3)
			AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY %s %s, id
		LIMIT $5 OFFSET $6`, filter.SortColumn(), filter.SortDirection())

	rows, err := p.db.Query(
		ctx,
		query,
		filter.OwnerID,
		filter.Status,
		filter.CreatedFrom,
		filter.CreatedTo,
		filter.Limit(),
		filter.Offset(),
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	totalRecords := 0
	payments := []*domain.Payment{}

	for rows.Next() {
		var payment domain.Payment
		var method, metadata []byte

		err := rows.Scan(
			&totalRecords,
			&payment.ID,
			&payment.TransactionID,
			&payment.ProviderRef,
			&payment.OwnerID,
			&payment.Amount.Amount,
			&payment.Amount.Currency,
			&payment.Provider,
			&method,
			&payment.Status,
			&metadata,
			&payment.Locale,
			&payment.Version,
			&payment.CreatedAt,
			&payment.CompletedAt,
		)
		if err != nil {
			return nil, nil, err
		}

		if err := unmarshalPaymentJSON(&payment, method, metadata); err != nil {
			return nil, nil, err
		}

		payments = append(payments, &payment)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, filter.Page, filter.PageSize)

	return payments, metadata, nil
}

func (p *PostgresPaymentRepository) ApplyTransition(
	ctx context.Context,
	transactionID string,
	expectedVersion int,
	next domain.PaymentStatus,
	completedAt *time.Time,
	eventID string,
) (*domain.Payment, error) {

	var payment *domain.Payment

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		if eventID != "" {
			tag, err := tx.Exec(ctx, `
				INSERT INTO payment_events (event_id, transaction_id, status)
				VALUES ($1, $2, $3)
				ON CONFLICT (event_id) DO NOTHING
			`, eventID, transactionID, next)
			if err != nil {
				return err
			}

			if tag.RowsAffected() == 0 {
				return domain.ErrEventAlreadyApplied
			}
		}

		query := `
			UPDATE payments
			SET status = $1,
				completed_at = COALESCE($2, completed_at),
				version = version + 1
			WHERE transaction_id = $3 AND version = $4
			RETURNING id, transaction_id, provider_ref, owner_id, amount, currency,
				provider, method, status, metadata, locale, version, created_at, completed_at
		`

		updated, err := scanPayment(tx.QueryRow(ctx, query, next, completedAt, transactionID, expectedVersion))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Either the row moved past expectedVersion or it vanished;
				// the caller reloads and re-evaluates in both cases.
				return domain.ErrEditConflict
			}
			return err
		}

		payment = updated
		return nil
	})

	if err != nil {
		return nil, err
	}

	return payment, nil
}

func (p *PostgresPaymentRepository) EventApplied(ctx context.Context, eventID string) (bool, error) {
	var applied bool

	query := `SELECT EXISTS (SELECT 1 FROM payment_events WHERE event_id = $1)`

	err := p.db.QueryRow(ctx, query, eventID).Scan(&applied)
	if err != nil {
		return false, err
	}

	return applied, nil
}

func (p *PostgresPaymentRepository) AddRefund(ctx context.Context, refund *domain.Refund, expectedVersion int, markRefunded bool) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO refunds (id, transaction_id, amount, currency, status, refunded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		_, err := tx.Exec(
			ctx,
			query,
			refund.ID,
			refund.TransactionID,
			refund.Amount.Amount,
			refund.Amount.Currency,
			refund.Status,
			refund.RefundedAt,
		)
		if err != nil {
			return err
		}

		query = `
			UPDATE payments
			SET status = CASE WHEN $1 THEN 'refunded' ELSE status END,
				version = version + 1
			WHERE transaction_id = $2 AND version = $3
		`

		tag, err := tx.Exec(ctx, query, markRefunded, refund.TransactionID, expectedVersion)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return domain.ErrEditConflict
		}

		return nil
	})
}

func (p *PostgresPaymentRepository) RefundsByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	query := `
		SELECT id, transaction_id, amount, currency, status, refunded_at
		FROM refunds
		WHERE transaction_id = $1
		ORDER BY refunded_at, id
	`

	rows, err := p.db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := []*domain.Refund{}

	for rows.Next() {
		var refund domain.Refund

		err := rows.Scan(
			&refund.ID,
			&refund.TransactionID,
			&refund.Amount.Amount,
			&refund.Amount.Currency,
			&refund.Status,
			&refund.RefundedAt,
		)
		if err != nil {
			return nil, err
		}

		refunds = append(refunds, &refund)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var payment domain.Payment
	var method, metadata []byte

	err := row.Scan(
		&payment.ID,
		&payment.TransactionID,
		&payment.ProviderRef,
		&payment.OwnerID,
		&payment.Amount.Amount,
		&payment.Amount.Currency,
		&payment.Provider,
		&method,
		&payment.Status,
		&metadata,
		&payment.Locale,
		&payment.Version,
		&payment.CreatedAt,
		&payment.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalPaymentJSON(&payment, method, metadata); err != nil {
		return nil, err
	}

	return &payment, nil
}

func unmarshalPaymentJSON(payment *domain.Payment, method, metadata []byte) error {
	if err := json.Unmarshal(method, &payment.Method); err != nil {
		return err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payment.Metadata); err != nil {
			return err
		}
	}

	return nil
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}
