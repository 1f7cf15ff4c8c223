package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[eventlog.TaskKind]time.Duration
	createErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[eventlog.TaskKind]time.Duration),
	}
}

// EnsureTaskSchedule records that a schedule was created or updated.
func (m *MockScheduler) EnsureTaskSchedule(ctx context.Context, task eventlog.TaskKind, interval time.Duration) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[task] = interval
	return nil
}

// DeleteTaskSchedule records that a schedule was deleted.
func (m *MockScheduler) DeleteTaskSchedule(ctx context.Context, task eventlog.TaskKind) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schedules[task]; !exists {
		return fmt.Errorf("schedule for task %q not found", task)
	}
	delete(m.schedules, task)
	return nil
}

// SetCreateError makes EnsureTaskSchedule return an error.
func (m *MockScheduler) SetCreateError(err error) {
	m.createErr = err
}

// SetDeleteError makes DeleteTaskSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// ScheduleExists checks if a schedule exists for a task.
func (m *MockScheduler) ScheduleExists(task eventlog.TaskKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.schedules[task]
	return exists
}

// GetScheduleInterval returns the interval for a task's schedule.
func (m *MockScheduler) GetScheduleInterval(task eventlog.TaskKind) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval, exists := m.schedules[task]
	return interval, exists
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

// Reset clears all schedules and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[eventlog.TaskKind]time.Duration)
	m.createErr = nil
	m.deleteErr = nil
}
