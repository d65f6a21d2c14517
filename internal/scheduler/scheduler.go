// Package scheduler drives the periodic dispatch and delivery runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/service"
)

// Config holds the cron specs and per-run budgets.
type Config struct {
	DispatchSpec    string
	DispatchBatch   int
	DispatchTimeout time.Duration
	DeliverySpec    string
	DeliveryBatch   int
	DeliveryTimeout time.Duration
}

// Scheduler runs ProcessDue and the delivery drain on cron schedules.
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	engine     *cron.Cron
	dispatcher service.DispatcherService
	delivery   service.DeliveryService
	cfg        Config
	now        func() time.Time
	logger     zerolog.Logger
}

// New constructs the scheduler. Jobs run in UTC.
func New(dispatcher service.DispatcherService, delivery service.DeliveryService, cfg Config, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: logger}

	if cfg.DispatchSpec == "" {
		cfg.DispatchSpec = "@every 1m"
	}
	if cfg.DeliverySpec == "" {
		cfg.DeliverySpec = "@every 30s"
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 50 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 25 * time.Second
	}

	return &Scheduler{
		engine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		dispatcher: dispatcher,
		delivery:   delivery,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *Scheduler) Start() error {
	if _, err := s.engine.AddFunc(s.cfg.DispatchSpec, s.RunDispatch); err != nil {
		return fmt.Errorf("register dispatch job %q: %w", s.cfg.DispatchSpec, err)
	}
	if _, err := s.engine.AddFunc(s.cfg.DeliverySpec, s.RunDelivery); err != nil {
		return fmt.Errorf("register delivery job %q: %w", s.cfg.DeliverySpec, err)
	}

	s.engine.Start()
	s.logger.Info().
		Str("dispatch", s.cfg.DispatchSpec).
		Str("delivery", s.cfg.DeliverySpec).
		Msg("reminder scheduler started")
	return nil
}

// Stop halts the engine and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("reminder scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("reminder scheduler stop timed out with jobs still running")
	}
}

// RunDispatch performs one ProcessDue run within the dispatch budget.
func (s *Scheduler) RunDispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
	defer cancel()

	if _, err := s.dispatcher.ProcessDue(ctx, s.now(), s.cfg.DispatchBatch); err != nil {
		s.logger.Error().Err(err).Msg("dispatch run failed")
	}
}

// RunDelivery performs one delivery queue drain within the delivery budget.
func (s *Scheduler) RunDelivery() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DeliveryTimeout)
	defer cancel()

	if _, err := s.delivery.Drain(ctx, s.now(), s.cfg.DeliveryBatch); err != nil {
		s.logger.Error().Err(err).Msg("delivery run failed")
	}
}
