package eventlog

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process Log backed by a plain slice. It implements the
// same interface as PostgresLog so bridgestate and its callers never need to
// know which backing store they're replaying from; tests get a real
// implementation instead of a mock that could drift from actual persistence
// semantics.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append records ev with the next sequence number.
func (m *MemoryLog) Append(ctx context.Context, kind Kind, payload any) (Event, error) {
	ev, err := NewEvent(kind, payload)
	if err != nil {
		return Event{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ev.Seq = uint64(len(m.events)) + 1
	ev.RecordedAt = time.Now()
	m.events = append(m.events, ev)
	return ev, nil
}

// Replay invokes fn for every recorded event in append order.
func (m *MemoryLog) Replay(ctx context.Context, fn func(Event) error) error {
	m.mu.Lock()
	snapshot := make([]Event, len(m.events))
	copy(snapshot, m.events)
	m.mu.Unlock()

	for _, ev := range snapshot {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq returns the sequence number of the most recently appended event,
// or 0 if nothing has been appended.
func (m *MemoryLog) LastSeq(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return 0, nil
	}
	return m.events[len(m.events)-1].Seq, nil
}

// Events returns a copy of every event appended so far, for test assertions.
func (m *MemoryLog) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset clears the log, for reuse across test cases.
func (m *MemoryLog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
