// Package app wires the HTTP surface: configuration, dependency construction,
// routing, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/ledger"
	"github.com/payflowhq/payflow/internal/mailer"
	"github.com/payflowhq/payflow/internal/rates"
	"github.com/payflowhq/payflow/internal/repository"
	"github.com/payflowhq/payflow/internal/scheduler"
	appvalidator "github.com/payflowhq/payflow/internal/validator"
	"github.com/payflowhq/payflow/internal/vcs"
	"github.com/payflowhq/payflow/internal/webhook"
	"github.com/redis/go-redis/v9"
)

var (
	version = vcs.Version()
)

type application struct {
	config    config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate
	mailer    mailer.Mailer

	currencyRepo domain.CurrencyRepository

	ledger     *ledger.Service
	rateStore  *rates.Store
	updater    *rates.Updater
	scheduler  *scheduler.Scheduler
	reconciler *webhook.Reconciler
}

type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleTime  time.Duration
	}
	redis struct {
		url          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	rates struct {
		sourceURL       string
		refreshInterval time.Duration
		staleAfter      time.Duration
		fetchRetries    uint64
		alertAfter      int
	}
	scheduler struct {
		workers     int
		queueSize   int
		maxAttempts int
		runTimeout  time.Duration
	}
}

func Run() error {
	var cfg config

	flag.IntVar(&cfg.port, "port", 3000, "server port")
	flag.StringVar(&cfg.env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.redis.url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.redis.maxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.redis.maxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.redis.maxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.smtp.host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", "PayFlow <no-reply@payflowhq.net>", "SMTP sender")

	flag.StringVar(&cfg.rates.sourceURL, "rates-source-url", "", "Exchange rate source URL")
	flag.DurationVar(&cfg.rates.refreshInterval, "rates-refresh-interval", time.Hour, "Exchange rate refresh interval")
	flag.DurationVar(&cfg.rates.staleAfter, "rates-stale-after", rates.DefaultStaleThreshold, "Age after which a rate is too stale to convert with")
	flag.Uint64Var(&cfg.rates.fetchRetries, "rates-fetch-retries", 3, "Retries per rate fetch attempt")
	flag.IntVar(&cfg.rates.alertAfter, "rates-alert-after", 5, "Consecutive failed refreshes before alerting")

	flag.IntVar(&cfg.scheduler.workers, "scheduler-workers", 4, "Background job workers")
	flag.IntVar(&cfg.scheduler.queueSize, "scheduler-queue-size", 64, "Background job queue size")
	flag.IntVar(&cfg.scheduler.maxAttempts, "scheduler-max-attempts", 3, "Attempts per background job before dead-lettering")
	flag.DurationVar(&cfg.scheduler.runTimeout, "scheduler-run-timeout", time.Minute, "Timeout per background job attempt")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	validator := appvalidator.NewValidator()

	db, err := newDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	paymentRepo := repository.NewPostgresPaymentRepository(db)
	rateRepo := repository.NewPostgresExchangeRateRepository(db)
	currencyRepo := repository.NewPostgresCurrencyRepository(db)

	smtpMailer := mailer.NewSMTPMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)

	notifier := newMailerNotifier(smtpMailer, currencyRepo, logger)
	ledgerService := ledger.NewService(paymentRepo, currencyRepo, notifier, logger)

	rateStore := rates.NewStore(rateRepo, currencyRepo, cfg.rates.staleAfter, logger)

	fetcher := rates.NewHTTPFetcher(cfg.rates.sourceURL, nil)
	updater := rates.NewUpdater(fetcher, rateStore, rates.UpdaterConfig{
		FetchRetries: cfg.rates.fetchRetries,
		AlertAfter:   cfg.rates.alertAfter,
	}, logger)

	sched := scheduler.New(scheduler.Config{
		Workers:     cfg.scheduler.workers,
		QueueSize:   cfg.scheduler.queueSize,
		MaxAttempts: cfg.scheduler.maxAttempts,
		RunTimeout:  cfg.scheduler.runTimeout,
	}, logger)

	app := &application{
		config:       cfg,
		logger:       logger,
		db:           db,
		redis:        redisClient,
		validator:    validator,
		mailer:       smtpMailer,
		currencyRepo: currencyRepo,
		ledger:       ledgerService,
		rateStore:    rateStore,
		updater:      updater,
		scheduler:    sched,
		reconciler:   webhook.NewReconciler(ledgerService, redisClient, logger),
	}

	return app.run()
}

func newRedisClient(cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.redis.url,
		MaxIdleConns:    cfg.redis.maxIdleConns,
		MaxActiveConns:  cfg.redis.maxOpenConns,
		ConnMaxIdleTime: cfg.redis.maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.db.maxIdleTime
	config.MaxConns = int32(cfg.db.maxOpenConns)

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *application) rateRefreshTask() scheduler.Task {
	return scheduler.Task{
		Name: "rate-refresh",
		Run:  app.updater.Run,
	}
}

func (app *application) run() error {
	app.scheduler.Start()
	app.scheduler.Every(app.config.rates.refreshInterval, app.rateRefreshTask())

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
			return
		}

		app.scheduler.Stop()

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(app.recoverPanic)

	r.Get("/health", app.GetHealth)

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", app.CreatePaymentHandler)
		r.Get("/", app.ListPaymentsHandler)

		r.Route("/{transactionId}", func(r chi.Router) {
			r.Get("/", app.GetPaymentHandler)
			r.Post("/refunds", app.CreateRefundHandler)
			r.Get("/refunds", app.ListRefundsHandler)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{provider}", app.ProviderWebhookHandler)
	})

	r.Route("/exchange-rates", func(r chi.Router) {
		r.Get("/", app.ListExchangeRatesHandler)
		r.Post("/refresh", app.RefreshRatesHandler)

		r.Route("/{base}/{target}", func(r chi.Router) {
			r.Get("/", app.GetExchangeRateHandler)
			r.Get("/convert", app.ConvertAmountHandler)
		})
	})

	return r
}
