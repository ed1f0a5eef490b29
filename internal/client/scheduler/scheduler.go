// Package scheduler runs sync passes in the background: periodically, on
// demand, and again with bounded exponential backoff after a failed pass.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/syncer"
	"github.com/dmitrijs2005/autoledger/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Runner runs one sync pass for a server.
type Runner interface {
	SyncServer(ctx context.Context, creds models.Credentials) (*syncer.Report, error)
}

type Config struct {
	// Interval between periodic passes.
	Interval time.Duration
	// Backoff of a failed pass: exponential from RetryBase, each wait capped
	// at RetryCap, at most RetryMax retries before waiting for the next
	// trigger. RetryMax zero disables retries; it has no default.
	RetryBase time.Duration
	RetryCap  time.Duration
	RetryMax  uint64
}

// DefaultConfig returns the default schedule.
func DefaultConfig() Config {
	return Config{
		Interval:  6 * time.Hour,
		RetryBase: 30 * time.Second,
		RetryCap:  10 * time.Minute,
		RetryMax:  5,
	}
}

type Scheduler struct {
	runner Runner
	creds  models.Credentials
	logger logging.Logger
	cfg    Config

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(runner Runner, creds models.Credentials, logger logging.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = def.RetryCap
	}
	return &Scheduler{
		runner:  runner,
		creds:   creds,
		logger:  logger.With("server", creds.ServerID),
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// Start runs a pass right away and then on every tick or trigger until ctx
// is done or Stop is called. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info(ctx, "sync scheduler started", "interval", s.cfg.Interval)
}

// Stop cancels the loop, including a pass or backoff wait in progress, and
// waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info(context.Background(), "sync scheduler stopped")
}

// Trigger requests a pass as soon as the loop is free. It never blocks;
// requests made while one is already pending are coalesced into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SyncNow runs a single pass in the caller's goroutine, without retries.
// It waits for a pass in progress to finish first.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncer.Report, error) {
	return s.runner.SyncServer(ctx, s.creds)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runWithRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWithRetry(ctx)
		case <-s.trigger:
			s.runWithRetry(ctx)
		}
	}
}

func (s *Scheduler) backoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.RetryBase)
	b = retry.WithCappedDuration(s.cfg.RetryCap, b)
	return retry.WithMaxRetries(s.cfg.RetryMax, b)
}

// runWithRetry runs one pass and retries it while it fails. Operations that
// exhausted their attempts do not fail the pass and are not retried here.
func (s *Scheduler) runWithRetry(ctx context.Context) {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		rep, err := s.runner.SyncServer(ctx, s.creds)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Warn(ctx, "sync pass failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if exhausted := rep.Err(); exhausted != nil {
			s.logger.Error(ctx, "operations need attention", "error", exhausted)
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.logger.Error(ctx, "sync pass gave up until next trigger", "attempts", attempt, "error", err)
	}
}
