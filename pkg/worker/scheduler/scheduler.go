// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rzbill/subrelay/pkg/log"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. A job never overlaps with itself.
type Scheduler struct {
	cron    *cron.Cron
	logger  log.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds every run of every job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// NewScheduler creates a scheduler. Schedules use the standard five field
// cron syntax or descriptors such as "@every 10m".
func NewScheduler(logger log.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithComponent("scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		logger:  logger,
		timeout: time.Minute,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers job under name. Scheduling a name twice replaces the
// earlier job.
func (s *Scheduler) Schedule(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var running sync.Mutex
	id, err := s.cron.AddFunc(spec, func() {
		if !running.TryLock() {
			s.logger.Debug("Skipping overlapping run", log.Str("job", name))
			return
		}
		defer running.Unlock()
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = id
	s.logger.Debug("Scheduled job", log.Str("job", name), log.Str("schedule", spec))
	return nil
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("Job failed", log.Str("job", name), log.Err(err))
		return
	}
	s.logger.Debug("Job finished", log.Str("job", name), log.Duration("duration", time.Since(start)))
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
