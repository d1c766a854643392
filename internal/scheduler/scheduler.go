// Package scheduler runs periodic refreshes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RefreshFunc performs one refresh of every registered account.
type RefreshFunc func(ctx context.Context) error

// Status describes the scheduled refresh.
type Status struct {
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
}

var (
	ErrStopped      = errors.New("scheduler is stopped")
	ErrRunning      = errors.New("refresh already running")
	ErrNotScheduled = errors.New("no schedule set")
)

const scheduleFieldMask = cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow

// Scheduler triggers a RefreshFunc on a five-field cron schedule. Runs
// never overlap; a tick that fires while a refresh is running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	refresh RefreshFunc
	logger  *slog.Logger

	mu       sync.Mutex
	entry    cron.EntryID
	schedule string
	running  bool
	runs     int
	lastRun  time.Time
	lastErr  error
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a stopped Scheduler for refresh.
func New(refresh RefreshFunc, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(cron.NewParser(scheduleFieldMask))),
		refresh: refresh,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSchedule replaces the current schedule.
func (s *Scheduler) SetSchedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, s.tick)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.schedule = expr
	s.logger.Info("scheduled refresh", "schedule", expr, "next_run", s.nextRun())
	return nil
}

// Start begins executing the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.schedule)
}

// Stop halts the schedule, cancels a running refresh and returns a
// context that is done once it has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		cancel()
	}()
	s.logger.Info("scheduler stopping")
	return ctx
}

// Trigger starts a refresh outside of the schedule.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		return ErrStopped
	case s.entry == 0:
		return ErrNotScheduled
	case s.running:
		return ErrRunning
	}
	s.running = true
	s.wg.Add(1)
	go s.run()
	return nil
}

// Status reports the schedule and the outcome of the last run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule: s.schedule,
		Running:  s.running,
		Runs:     s.runs,
		LastRun:  s.lastRun,
	}
	if s.entry != 0 {
		st.NextRun = s.nextRun()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// nextRun computes the next activation from the schedule itself, since
// cron only fills Entry.Next once it is running.
func (s *Scheduler) nextRun() time.Time {
	return s.cron.Entry(s.entry).Schedule.Next(time.Now())
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.stopped || s.running {
		s.mu.Unlock()
		s.logger.Debug("skipping scheduled refresh")
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()
	s.run()
}

// run executes one refresh. The caller has set running and called wg.Add.
func (s *Scheduler) run() {
	defer s.wg.Done()

	start := time.Now()
	s.logger.Info("starting scheduled refresh")
	err := s.refresh(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.lastErr = err
	if err != nil {
		s.logger.Error("scheduled refresh failed", "duration", time.Since(start), "error", err)
		return
	}
	s.lastRun = time.Now()
	s.logger.Info("scheduled refresh completed", "duration", time.Since(start))
}

// ValidateSchedule checks a cron expression without scheduling anything.
func ValidateSchedule(expr string) error {
	if _, err := cron.NewParser(scheduleFieldMask).Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
