package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/groups"
)

// Scheduler runs the group fetch-and-diff on a cron schedule. The check
// callback is expected to serialize itself onto the session worker.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	check    func() (*groups.DiffResult, error)
	logger   *logrus.Logger
	metrics  *Metrics
	mu       sync.RWMutex
	running  bool
	lastRun  *time.Time
	nextRun  *time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(schedule string, check func() (*groups.DiffResult, error), logger *logrus.Logger, metrics *Metrics) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger)))

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		check:    check,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runCheck)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	entries := s.cron.Entries()
	if len(entries) > 0 {
		nextTime := entries[0].Next
		s.nextRun = &nextTime
	}

	s.logger.Infof("Scheduler started with schedule '%s' (entry ID: %d)", s.schedule, entryID)
	if s.nextRun != nil {
		s.logger.Infof("Next group check scheduled for: %s", s.nextRun.Format(time.RFC3339))
	}

	return nil
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.running = false
	s.nextRun = nil

	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetLastRun returns the time of the last scheduled check
func (s *Scheduler) GetLastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// GetNextRun returns the time of the next scheduled check
func (s *Scheduler) GetNextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) > 0 {
		nextTime := entries[0].Next
		return &nextTime
	}

	return s.nextRun
}

// runCheck executes a fetch-and-diff (called by cron)
func (s *Scheduler) runCheck() {
	s.logger.Info("Starting scheduled group check")

	startTime := time.Now()
	result, err := s.check()
	duration := time.Since(startTime)

	s.mu.Lock()
	s.lastRun = &startTime
	entries := s.cron.Entries()
	if len(entries) > 0 {
		nextTime := entries[0].Next
		s.nextRun = &nextTime
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Errorf("Scheduled group check failed: %v", err)
		s.metrics.RecordFetch(0, duration, err)
		return
	}

	s.metrics.RecordFetch(len(result.NewGroups), duration, nil)
	if result.Initial {
		s.logger.Info("Scheduled group check saved the initial snapshot")
	} else {
		s.logger.Infof("Scheduled group check completed in %v, %d new groups", duration, len(result.NewGroups))
	}
}
