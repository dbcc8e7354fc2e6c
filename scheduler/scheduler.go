// Package scheduler triggers transfer passes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultStartDelay is how long RunOnStart waits before the first pass.
const DefaultStartDelay = 3 * time.Second

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	// Spec is a standard five-field cron expression.
	Spec string
	// RunOnStart triggers one pass shortly after Start.
	RunOnStart bool
	StartDelay time.Duration
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	job    Job
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ValidateSpec checks a five-field cron expression.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// New creates a scheduler. It fails when the cron expression is invalid.
func New(job Job, opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler job is nil")
	}
	if opts.StartDelay <= 0 {
		opts.StartDelay = DefaultStartDelay
	}

	s := &Scheduler{
		job:    job,
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))

	if _, err := s.cron.AddFunc(opts.Spec, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", opts.Spec, err)
	}
	return s, nil
}

// Start begins scheduling. ctx is passed to every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Str("cron", s.opts.Spec).Time("next", s.Next()).Msg("Scheduler started")

	if s.opts.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			timer := time.NewTimer(s.opts.StartDelay)
			defer timer.Stop()
			select {
			case <-runCtx.Done():
			case <-timer.C:
				s.run(runCtx, "startup")
			}
		}()
	}
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Next returns the next scheduled activation.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.run(ctx, "cron")
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Debug().Str("trigger", reason).Msg("Running scheduled job")
	if err := s.job(ctx); err != nil {
		s.logger.Error().Err(err).Str("trigger", reason).Msg("Scheduled job failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
