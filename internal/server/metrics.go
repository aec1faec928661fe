package server

import (
	"sync"
	"time"
)

// Metrics collects counters for the session operations the server runs.
type Metrics struct {
	mu                sync.RWMutex
	totalFetches      int
	failedFetches     int
	newGroupsDetected int
	totalBatches      int
	failedBatches     int
	usersInvited      int
	usersRemoved      int
	lastOpDuration    time.Duration
	averageOpDuration time.Duration
	lastOpTime        *time.Time
	lastError         error
	uptime            time.Time
}

// MetricsStats represents the current metrics statistics
type MetricsStats struct {
	TotalFetches      int           `json:"total_fetches"`
	FailedFetches     int           `json:"failed_fetches"`
	NewGroupsDetected int           `json:"new_groups_detected"`
	TotalBatches      int           `json:"total_batches"`
	FailedBatches     int           `json:"failed_batches"`
	UsersInvited      int           `json:"users_invited"`
	UsersRemoved      int           `json:"users_removed"`
	SuccessRate       float64       `json:"success_rate"`
	LastOpDuration    time.Duration `json:"last_op_duration"`
	AverageOpDuration time.Duration `json:"average_op_duration"`
	LastOpTime        *time.Time    `json:"last_op_time"`
	LastError         string        `json:"last_error,omitempty"`
	Uptime            time.Duration `json:"uptime"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		uptime: time.Now(),
	}
}

// RecordFetch records one group fetch-and-diff run.
func (m *Metrics) RecordFetch(newGroups int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalFetches++
	if err != nil {
		m.failedFetches++
		m.lastError = err
	} else {
		m.newGroupsDetected += newGroups
		m.lastError = nil
	}

	m.recordOp(duration)
}

// RecordBatch records one invite or remove batch. groups counts the
// per-group operations that completed before the batch ended.
func (m *Metrics) RecordBatch(verb string, groups int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBatches++
	if err != nil {
		m.failedBatches++
		m.lastError = err
	} else {
		m.lastError = nil
	}

	switch verb {
	case "invite":
		m.usersInvited += groups
	case "remove":
		m.usersRemoved += groups
	}

	m.recordOp(duration)
}

// recordOp updates the duration aggregates; callers hold the lock.
func (m *Metrics) recordOp(duration time.Duration) {
	total := m.totalFetches + m.totalBatches
	if total > 1 {
		sum := time.Duration(int64(m.averageOpDuration) * int64(total-1))
		m.averageOpDuration = (sum + duration) / time.Duration(total)
	} else {
		m.averageOpDuration = duration
	}
	m.lastOpDuration = duration

	now := time.Now()
	m.lastOpTime = &now
}

// GetStats returns the current metrics statistics
func (m *Metrics) GetStats() *MetricsStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.totalFetches + m.totalBatches
	failed := m.failedFetches + m.failedBatches

	var successRate float64
	if total > 0 {
		successRate = float64(total-failed) / float64(total) * 100
	}

	var lastErrorStr string
	if m.lastError != nil {
		lastErrorStr = m.lastError.Error()
	}

	return &MetricsStats{
		TotalFetches:      m.totalFetches,
		FailedFetches:     m.failedFetches,
		NewGroupsDetected: m.newGroupsDetected,
		TotalBatches:      m.totalBatches,
		FailedBatches:     m.failedBatches,
		UsersInvited:      m.usersInvited,
		UsersRemoved:      m.usersRemoved,
		SuccessRate:       successRate,
		LastOpDuration:    m.lastOpDuration,
		AverageOpDuration: m.averageOpDuration,
		LastOpTime:        m.lastOpTime,
		LastError:         lastErrorStr,
		Uptime:            time.Since(m.uptime),
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalFetches = 0
	m.failedFetches = 0
	m.newGroupsDetected = 0
	m.totalBatches = 0
	m.failedBatches = 0
	m.usersInvited = 0
	m.usersRemoved = 0
	m.lastOpDuration = 0
	m.averageOpDuration = 0
	m.lastOpTime = nil
	m.lastError = nil
	m.uptime = time.Now()
}
