package rates

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
)

// Updater periodically reconciles a fetched rate table into the store as one
// logical batch. Pairs are reconciled independently: a malformed entry is
// skipped and counted, never fatal for the rest of the batch.
type Updater struct {
	fetcher      Fetcher
	store        *Store
	logger       *slog.Logger
	fetchRetries uint64
	alertAfter   int

	// running collapses overlapping Run calls into one: the scheduled
	// refresh and a manual refresh can race, and a second concurrent fetch
	// buys nothing. consecutiveFailures is only touched while running is
	// held, so it needs no further synchronization.
	running             atomic.Bool
	consecutiveFailures int
}

type UpdaterConfig struct {
	// FetchRetries is how many times a failed fetch is retried with
	// exponential backoff within a single run.
	FetchRetries uint64

	// AlertAfter is the number of consecutive failed runs before an
	// operational alert is logged. Previous rates stay in place either way:
	// stale-but-available beats unavailable.
	AlertAfter int
}

func NewUpdater(fetcher Fetcher, store *Store, cfg UpdaterConfig, logger *slog.Logger) *Updater {
	if cfg.FetchRetries == 0 {
		cfg.FetchRetries = 3
	}
	if cfg.AlertAfter == 0 {
		cfg.AlertAfter = 5
	}

	return &Updater{
		fetcher:      fetcher,
		store:        store,
		logger:       logger,
		fetchRetries: cfg.FetchRetries,
		alertAfter:   cfg.AlertAfter,
	}
}

// BatchResult is the overall outcome of one reconciliation run. Skipped counts
// malformed entries, Failed counts store write errors, Stale counts writes the
// store discarded in favor of a newer snapshot.
type BatchResult struct {
	Updated int
	Skipped int
	Stale   int
	Failed  int
}

func (u *Updater) Run(ctx context.Context) error {
	if !u.running.CompareAndSwap(false, true) {
		u.logger.Info("exchange rate refresh already in progress, skipping")
		return nil
	}
	defer u.running.Store(false)

	table, err := u.fetch(ctx)
	if err != nil {
		u.consecutiveFailures++
		u.logger.Warn("exchange rate fetch failed, keeping previous rates",
			"error", err,
			"consecutiveFailures", u.consecutiveFailures,
		)

		if u.consecutiveFailures >= u.alertAfter {
			u.logger.Error("exchange rate source unavailable, rates are going stale",
				"consecutiveFailures", u.consecutiveFailures,
			)
		}

		return err
	}

	u.consecutiveFailures = 0

	result := u.reconcile(ctx, table)

	u.logger.Info("exchange rate batch reconciled",
		"base", table.Base,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"stale", result.Stale,
		"failed", result.Failed,
	)

	return nil
}

func (u *Updater) fetch(ctx context.Context) (*RateTable, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), u.fetchRetries),
		ctx,
	)

	return backoff.RetryWithData(func() (*RateTable, error) {
		return u.fetcher.FetchRates(ctx)
	}, policy)
}

func (u *Updater) reconcile(ctx context.Context, table *RateTable) BatchResult {
	var result BatchResult

	base := strings.ToUpper(strings.TrimSpace(table.Base))

	for code, rate := range table.Rates {
		target := strings.ToUpper(strings.TrimSpace(code))

		if len(target) != 3 || target == base || !rate.IsPositive() {
			result.Skipped++
			u.logger.Warn("skipping malformed rate entry", "base", base, "target", code, "rate", rate)
			continue
		}

		stored, err := u.store.UpsertRate(ctx, base, target, rate, table.AsOf)
		if err != nil {
			result.Failed++
			u.logger.Warn("failed to store rate entry", "base", base, "target", target, "error", err)
			continue
		}

		// The store discarded the write because it already holds a newer
		// snapshot for this pair.
		if stored.AsOf.After(table.AsOf) {
			result.Stale++
			continue
		}

		result.Updated++
	}

	return result
}
