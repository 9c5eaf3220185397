// Package schedule runs periodic maintenance jobs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ppiankov/aclarai/internal/logging"
)

// Job is a named unit of periodic work
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// CronScheduler runs jobs on five-field cron specs. A job still running when
// its next tick fires is skipped for that tick.
type CronScheduler struct {
	cron    *cron.Cron
	logger  *logging.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
}

// NewCronScheduler creates a stopped scheduler
func NewCronScheduler(logger *logging.Logger) *CronScheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger.With("component", "scheduler"),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// AddJob schedules job on spec. Names must be unique.
func (s *CronScheduler) AddJob(job Job, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(job, spec))
	if err != nil {
		return fmt.Errorf("schedule %s on %q: %w", job.Name, spec, err)
	}
	s.entries[job.Name] = id
	s.logger.Info("job scheduled", "job", job.Name, "spec", spec)
	return nil
}

// Next returns the next run time of a scheduled job
func (s *CronScheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start runs the scheduler until Stop. Jobs receive ctx.
func (s *CronScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow executes a scheduled job immediately, outside the cron loop
func (s *CronScheduler) RunNow(ctx context.Context, job Job) error {
	return runJob(ctx, s.logger, job, "now")
}

func (s *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			s.logger.Info("job skipped: still running", "job", job.Name, "spec", spec)
			return
		}
		defer running.Store(false)

		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		_ = runJob(ctx, s.logger, job, spec)
	}
}

func runJob(ctx context.Context, logger *logging.Logger, job Job, spec string) error {
	start := time.Now()
	logger.Info("job started", "job", job.Name, "spec", spec)
	err := job.Run(ctx)
	elapsed := time.Since(start).String()
	if err != nil {
		logger.Error("job finished", "job", job.Name, "error", err.Error(), "duration", elapsed)
		return err
	}
	logger.Info("job finished", "job", job.Name, "duration", elapsed)
	return nil
}
