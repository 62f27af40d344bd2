package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflowhq/payflow/internal/domain"
)

type PostgresExchangeRateRepository struct {
	db *pgxpool.Pool
}

func NewPostgresExchangeRateRepository(db *pgxpool.Pool) *PostgresExchangeRateRepository {
	return &PostgresExchangeRateRepository{
		db: db,
	}
}

func (p *PostgresExchangeRateRepository) Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	query := `
		SELECT base, target, rate, as_of
		FROM exchange_rates
		WHERE base = $1 AND target = $2
	`

	var rate domain.ExchangeRate
	err := p.db.QueryRow(ctx, query, base, target).Scan(&rate.Base, &rate.Target, &rate.Rate, &rate.AsOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &rate, nil
}

func (p *PostgresExchangeRateRepository) GetAll(ctx context.Context) ([]*domain.ExchangeRate, error) {
	query := `
		SELECT base, target, rate, as_of
		FROM exchange_rates
		ORDER BY base, target
	`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := []*domain.ExchangeRate{}

	for rows.Next() {
		var rate domain.ExchangeRate
		if err := rows.Scan(&rate.Base, &rate.Target, &rate.Rate, &rate.AsOf); err != nil {
			return nil, err
		}
		rates = append(rates, &rate)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return rates, nil
}

// Upsert writes the pair unless the stored row carries a newer as_of. The
// WHERE clause on the conflict update makes last-writer-wins a property of
// the statement itself, so concurrent upserts for the same pair need no
// application-side locking.
func (p *PostgresExchangeRateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) (*domain.ExchangeRate, error) {
	query := `
		INSERT INTO exchange_rates (base, target, rate, as_of)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (base, target) DO UPDATE
			SET rate = EXCLUDED.rate, as_of = EXCLUDED.as_of
			WHERE exchange_rates.as_of < EXCLUDED.as_of
	`

	_, err := p.db.Exec(ctx, query, rate.Base, rate.Target, rate.Rate, rate.AsOf)
	if err != nil {
		return nil, err
	}

	return p.Get(ctx, rate.Base, rate.Target)
}

type PostgresCurrencyRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCurrencyRepository(db *pgxpool.Pool) *PostgresCurrencyRepository {
	return &PostgresCurrencyRepository{
		db: db,
	}
}

func (p *PostgresCurrencyRepository) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	query := `
		SELECT code, name, symbol, prefix_symbol, decimal_places,
			decimal_separator, thousand_separator, active
		FROM currencies
		WHERE code = $1
	`

	var currency domain.Currency
	err := p.db.QueryRow(ctx, query, code).Scan(
		&currency.Code,
		&currency.Name,
		&currency.Symbol,
		&currency.PrefixSymbol,
		&currency.DecimalPlaces,
		&currency.DecimalSeparator,
		&currency.ThousandSeparator,
		&currency.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &currency, nil
}

func (p *PostgresCurrencyRepository) GetAll(ctx context.Context) ([]*domain.Currency, error) {
	query := `
		SELECT code, name, symbol, prefix_symbol, decimal_places,
			decimal_separator, thousand_separator, active
		FROM currencies
		ORDER BY code
	`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	currencies := []*domain.Currency{}

	for rows.Next() {
		var currency domain.Currency

		err := rows.Scan(
			&currency.Code,
			&currency.Name,
			&currency.Symbol,
			&currency.PrefixSymbol,
			&currency.DecimalPlaces,
			&currency.DecimalSeparator,
			&currency.ThousandSeparator,
			&currency.Active,
		)
		if err != nil {
			return nil, err
		}

		currencies = append(currencies, &currency)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return currencies, nil
}

func (p *PostgresCurrencyRepository) Upsert(ctx context.Context, currency *domain.Currency) error {
	query := `
		INSERT INTO currencies (code, name, symbol, prefix_symbol, decimal_places,
			decimal_separator, thousand_separator, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				prefix_symbol = EXCLUDED.prefix_symbol,
				decimal_places = EXCLUDED.decimal_places,
				decimal_separator = EXCLUDED.decimal_separator,
				thousand_separator = EXCLUDED.thousand_separator,
				active = EXCLUDED.active
	`

	_, err := p.db.Exec(
		ctx,
		query,
		currency.Code,
		currency.Name,
		currency.Symbol,
		currency.PrefixSymbol,
		currency.DecimalPlaces,
		currency.DecimalSeparator,
		currency.ThousandSeparator,
		currency.Active,
	)

	return err
}

func (p *PostgresCurrencyRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := p.db.Exec(ctx, `UPDATE currencies SET active = false WHERE code = $1`, code)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
