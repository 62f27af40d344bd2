// Package scheduler provides at-least-once dispatch of background work: a
// worker pool draining a task queue, periodic leading-edge triggers, bounded
// exponential-backoff retries and a dead-letter record for work that
// exhausted its attempts.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error

	// done, when set, fires exactly once after the task's whole retry
	// cycle has finished, whether it succeeded, dead-lettered or timed
	// out. Every relies on it to hold its in-flight guard across retries.
	done func()
}

// DeadLetter holds a task that exhausted its retries, kept for manual
// inspection rather than silently dropped.
type DeadLetter struct {
	Task     string
	Attempts int
	LastErr  string
	At       time.Time
}

var ErrStopped = errors.New("scheduler is stopped")

type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RunTimeout  time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type Scheduler struct {
	logger *slog.Logger
	cfg    Config

	queue   chan Task
	wg      sync.WaitGroup
	tickers sync.WaitGroup
	stop    chan struct{}
	stopped atomic.Bool

	// submitMu keeps Submit's send and Stop's close of the queue from
	// interleaving; Submit only ever takes the read side.
	submitMu sync.RWMutex

	mu          sync.Mutex
	deadLetters []DeadLetter
}

func New(cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = time.Minute
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	return &Scheduler{
		logger: logger,
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		stop:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Submit enqueues one unit of work for at-least-once execution.
func (s *Scheduler) Submit(task Task) error {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()

	if s.stopped.Load() {
		return ErrStopped
	}

	select {
	case s.queue <- task:
		return nil
	case <-s.stop:
		return ErrStopped
	}
}

// Every triggers the task on a fixed interval. The schedule is leading-edge
// only: a tick arriving while the previous run is still in flight, retries
// included, is skipped, so a slow run never queues up behind itself.
func (s *Scheduler) Every(interval time.Duration, task Task) {
	var inFlight atomic.Bool

	s.tickers.Add(1)

	go func() {
		defer s.tickers.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if !inFlight.CompareAndSwap(false, true) {
					s.logger.Debug("skipping scheduled run, previous run still in flight", "task", task.Name)
					continue
				}

				err := s.Submit(Task{
					Name: task.Name,
					Run:  task.Run,
					done: func() { inFlight.Store(false) },
				})
				if err != nil {
					inFlight.Store(false)
					return
				}
			}
		}
	}()
}

// Stop drains in-flight work and rejects further submissions. Safe to call
// once.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	close(s.stop)
	s.tickers.Wait()

	// Closing s.stop has woken any Submit blocked on a full queue, so the
	// write lock is only contended briefly.
	s.submitMu.Lock()
	close(s.queue)
	s.submitMu.Unlock()

	s.wg.Wait()
}

// DeadLetters returns a copy of the tasks that exhausted their retries.
func (s *Scheduler) DeadLetters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	letters := make([]DeadLetter, len(s.deadLetters))
	copy(letters, s.deadLetters)
	return letters
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for task := range s.queue {
		s.execute(task)
	}
}

func (s *Scheduler) execute(task Task) {
	if task.done != nil {
		defer task.done()
	}

	attempts := 0

	operation := func() error {
		attempts++

		// A run that exceeds the timeout is abandoned; its result is
		// discarded and the next attempt or trigger proceeds independently.
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()

		err := task.Run(ctx)
		if err != nil {
			s.logger.Warn("task failed", "task", task.Name, "attempt", attempts, "error", err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.BaseDelay
	policy.MaxInterval = s.cfg.MaxDelay

	err := backoff.Retry(operation, backoff.WithMaxRetries(policy, uint64(s.cfg.MaxAttempts-1)))
	if err == nil {
		return
	}

	letter := DeadLetter{
		Task:     task.Name,
		Attempts: attempts,
		LastErr:  err.Error(),
		At:       time.Now().UTC(),
	}

	s.mu.Lock()
	s.deadLetters = append(s.deadLetters, letter)
	s.mu.Unlock()

	s.logger.Error("task dead-lettered after exhausting retries",
		"task", task.Name,
		"attempts", attempts,
		"error", err,
	)
}
