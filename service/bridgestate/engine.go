package bridgestate

import (
	"context"
	"fmt"
	"sync"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// Engine guards State behind a single mutex, the Go analogue of the
// canister's thread_local! RefCell<Option<State>>: single-threaded
// cooperative execution there becomes mutual exclusion here, and Mutate is
// the only way in.
type Engine struct {
	mu    sync.Mutex
	state *State
	log   eventlog.Log
}

// NewEngine builds an Engine around a fresh State. Use Restore instead when
// recovering from an existing log.
func NewEngine(log eventlog.Log, cfg Config) *Engine {
	return &Engine{state: NewState(cfg), log: log}
}

// Restore replays every event in log and folds it into a fresh State,
// reconstructing the aggregate a live Engine would have accumulated, except
// that redeemed withdrawals come back with a nil Coupon (the coupon is not
// part of the logged event).
// Unknown event kinds are rejected: a mismatch between the binary and the
// log it's replaying means something upstream has drifted, and silently
// skipping events would corrupt balances.
func Restore(ctx context.Context, log eventlog.Log, cfg Config) (*Engine, error) {
	e := &Engine{state: NewState(cfg), log: log}

	err := log.Replay(ctx, func(ev eventlog.Event) error {
		return applyEvent(e.state, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("bridgestate: restore: %w", err)
	}
	return e, nil
}

// Read executes f while holding the engine's exclusive lock on State, so f
// may also change State in place. f must not retain state
// beyond the call.
func (e *Engine) Read(f func(*State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.state)
}

// ReadErr is Read for callers that need to return an error out of the
// closure (e.g. a lookup that can fail).
func (e *Engine) ReadErr(f func(*State) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(e.state)
}

// Mutate appends (kind, payload) to the log, then applies apply to State
// under the same lock. An InvariantError panicked from apply is recovered
// here and returned as a regular error: the event is already durably
// recorded by the time apply runs, so an invariant violation means the log
// and the in-memory reducer have diverged, not that the append should be
// rolled back.
func (e *Engine) Mutate(ctx context.Context, kind eventlog.Kind, payload any, apply func(*State)) (ev eventlog.Event, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err = e.log.Append(ctx, kind, payload)
	if err != nil {
		return eventlog.Event{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InvariantError); ok {
				err = ie
				return
			}
			panic(r)
		}
	}()

	apply(e.state)
	return ev, nil
}
