package server

import (
	"errors"
	"testing"
	"time"
)

func TestMetricsRecordFetch(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordFetch(3, 2*time.Second, nil)
	metrics.RecordFetch(0, 4*time.Second, nil)

	stats := metrics.GetStats()

	if stats.TotalFetches != 2 {
		t.Errorf("Expected 2 fetches, got %d", stats.TotalFetches)
	}
	if stats.FailedFetches != 0 {
		t.Errorf("Expected 0 failed fetches, got %d", stats.FailedFetches)
	}
	if stats.NewGroupsDetected != 3 {
		t.Errorf("Expected 3 new groups, got %d", stats.NewGroupsDetected)
	}
	if stats.LastOpDuration != 4*time.Second {
		t.Errorf("Expected last duration 4s, got %v", stats.LastOpDuration)
	}
	if stats.AverageOpDuration != 3*time.Second {
		t.Errorf("Expected average duration 3s, got %v", stats.AverageOpDuration)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("Expected 100%% success rate, got %f", stats.SuccessRate)
	}
	if stats.LastOpTime == nil {
		t.Error("Expected last op time to be set")
	}
}

func TestMetricsRecordFetchFailure(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordFetch(0, time.Second, errors.New("fetch blew up"))

	stats := metrics.GetStats()

	if stats.FailedFetches != 1 {
		t.Errorf("Expected 1 failed fetch, got %d", stats.FailedFetches)
	}
	if stats.LastError != "fetch blew up" {
		t.Errorf("Expected last error to be recorded, got %q", stats.LastError)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("Expected 0%% success rate, got %f", stats.SuccessRate)
	}
}

func TestMetricsRecordBatch(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordBatch("invite", 3, time.Second, nil)
	metrics.RecordBatch("remove", 1, time.Second, nil)
	metrics.RecordBatch("invite", 0, time.Second, errors.New("privacy"))

	stats := metrics.GetStats()

	if stats.TotalBatches != 3 {
		t.Errorf("Expected 3 batches, got %d", stats.TotalBatches)
	}
	if stats.FailedBatches != 1 {
		t.Errorf("Expected 1 failed batch, got %d", stats.FailedBatches)
	}
	if stats.UsersInvited != 3 {
		t.Errorf("Expected 3 invite operations, got %d", stats.UsersInvited)
	}
	if stats.UsersRemoved != 1 {
		t.Errorf("Expected 1 remove operation, got %d", stats.UsersRemoved)
	}
}

func TestMetricsSuccessRateMixed(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordFetch(0, time.Second, nil)
	metrics.RecordBatch("invite", 1, time.Second, nil)
	metrics.RecordFetch(0, time.Second, errors.New("boom"))
	metrics.RecordBatch("remove", 0, time.Second, errors.New("boom"))

	stats := metrics.GetStats()

	if stats.SuccessRate != 50 {
		t.Errorf("Expected 50%% success rate, got %f", stats.SuccessRate)
	}
}

func TestMetricsReset(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordFetch(2, time.Second, nil)
	metrics.RecordBatch("invite", 1, time.Second, errors.New("boom"))
	metrics.Reset()

	stats := metrics.GetStats()

	if stats.TotalFetches != 0 || stats.TotalBatches != 0 {
		t.Error("Expected counters to reset")
	}
	if stats.NewGroupsDetected != 0 || stats.UsersInvited != 0 {
		t.Error("Expected totals to reset")
	}
	if stats.LastError != "" {
		t.Errorf("Expected last error cleared, got %q", stats.LastError)
	}
	if stats.LastOpTime != nil {
		t.Error("Expected last op time cleared")
	}
}
