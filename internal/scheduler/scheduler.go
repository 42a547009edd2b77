// Package scheduler runs the periodic notification sweeps: the dispatch
// of pending notifications and the daily due-soon scan.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Jobs is the work the scheduler triggers. NotificationService satisfies it.
type Jobs interface {
	DispatchPending(ctx context.Context) (*domain.DispatchReport, error)
	ScanDueSoon(ctx context.Context) (*domain.DueSoonReport, error)
}

// Config holds the cron specs and the zone they are evaluated in.
type Config struct {
	DispatchSchedule string
	DueSoonSchedule  string
	Location         *time.Location
	// JobTimeout bounds one run of either sweep. Zero means no bound.
	JobTimeout time.Duration
}

// Scheduler wraps a cron instance with the two sweep entries.
type Scheduler struct {
	cron    *cron.Cron
	jobs    Jobs
	cfg     Config
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// New validates both schedules and registers the sweeps. Overlapping runs
// of the same sweep are skipped, and a panicking job is recovered and
// logged.
func New(cfg Config, jobs Jobs, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	clog := cronLogger{logger: logger.Named("cron")}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(cfg.DispatchSchedule, s.runDispatch); err != nil {
		return nil, fmt.Errorf("invalid dispatch schedule %q: %w", cfg.DispatchSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.DueSoonSchedule, s.runDueSoon); err != nil {
		return nil, fmt.Errorf("invalid due-soon schedule %q: %w", cfg.DueSoonSchedule, err)
	}
	return s, nil
}

// Start begins firing the sweeps in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()

	s.logger.Info("scheduler started",
		zap.String("dispatch_schedule", s.cfg.DispatchSchedule),
		zap.String("due_soon_schedule", s.cfg.DueSoonSchedule),
		zap.String("location", s.cfg.Location.String()),
	)
}

// Stop stops new runs and waits for in-flight ones until ctx expires, at
// which point their context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Entries returns the next fire time of every registered sweep.
func (s *Scheduler) Entries() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.cfg.JobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Scheduler) runDispatch() {
	ctx, cancel := s.jobContext()
	defer cancel()

	start := time.Now()
	report, err := s.jobs.DispatchPending(ctx)
	if err != nil {
		s.logJobError("dispatch", err)
		return
	}
	s.logger.Debug("scheduled dispatch done",
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Scheduler) runDueSoon() {
	ctx, cancel := s.jobContext()
	defer cancel()

	start := time.Now()
	report, err := s.jobs.ScanDueSoon(ctx)
	if err != nil {
		s.logJobError("due-soon scan", err)
		return
	}
	s.logger.Debug("scheduled due-soon scan done",
		zap.Int("created", report.Created),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Scheduler) logJobError(job string, err error) {
	var busy *domain.ErrBusy
	if errors.As(err, &busy) {
		s.logger.Info("scheduled run skipped, sweep already running", zap.String("job", job))
		return
	}
	s.logger.Error("scheduled run failed", zap.String("job", job), zap.Error(err))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
