package statemachine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/models/statemachine_models"
)

// GraphLoader fetches the persisted lifecycle graph. Injectable so tests can
// run the engine without a database.
type GraphLoader func(ctx context.Context) ([]statemachine_models.BookingState, []statemachine_models.BookingStateTransition, error)

// Engine answers transition queries against a TTL-cached adjacency built from
// the persisted graph rows. A (state, event) pair that is not explicitly
// modeled is always rejected; there is no default-allow path.
type Engine struct {
	loader GraphLoader
	ttl    time.Duration

	mu        sync.RWMutex
	adjacency map[string]map[string]string
	terminal  map[string]bool
	loadedAt  time.Time
}

// NewEngine creates an engine over the given loader. A TTL of zero disables
// expiry (the graph is loaded once until Invalidate is called).
func NewEngine(loader GraphLoader, ttl time.Duration) *Engine {
	return &Engine{loader: loader, ttl: ttl}
}

// NewDBEngine creates an engine backed by the booking_states and
// booking_state_transitions tables.
func NewDBEngine(db shared_models.DB, ttl time.Duration) *Engine {
	return NewEngine(func(ctx context.Context) ([]statemachine_models.BookingState, []statemachine_models.BookingStateTransition, error) {
		states, err := statemachine_models.LoadBookingStates(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		transitions, err := statemachine_models.LoadBookingStateTransitions(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		return states, transitions, nil
	}, ttl)
}

// ensureLoaded rebuilds the adjacency when missing or past its TTL. A failed
// load surfaces as a hard error; the engine never answers from an empty graph
// and never silently serves a graph it failed to refresh.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	fresh := e.adjacency != nil && (e.ttl == 0 || time.Since(e.loadedAt) < e.ttl)
	e.mu.RUnlock()
	if fresh {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another caller may have rebuilt while we waited for the lock.
	if e.adjacency != nil && (e.ttl == 0 || time.Since(e.loadedAt) < e.ttl) {
		return nil
	}

	states, transitions, err := e.loader(ctx)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load booking state graph: %v", err)
		return fmt.Errorf("failed to load state graph: %w", err)
	}
	if len(states) == 0 {
		return fmt.Errorf("state graph is empty; refusing to answer transition queries")
	}

	adjacency := make(map[string]map[string]string, len(states))
	terminal := make(map[string]bool, len(states))
	for _, s := range states {
		adjacency[s.Name] = make(map[string]string)
		if s.IsTerminal {
			terminal[s.Name] = true
		}
	}
	for _, t := range transitions {
		if _, ok := adjacency[t.FromState]; !ok {
			logger.WarnLogger.Warnf("Transition %s --%s--> %s references unknown state, skipping", t.FromState, t.Event, t.ToState)
			continue
		}
		adjacency[t.FromState][t.Event] = t.ToState
	}

	e.adjacency = adjacency
	e.terminal = terminal
	e.loadedAt = time.Now()
	logger.InfoLogger.Infof("State graph loaded: %d states, %d transitions", len(states), len(transitions))
	return nil
}

// CanTransition reports whether the graph has an edge (state, event).
func (e *Engine) CanTransition(ctx context.Context, state, event string) (bool, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return false, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	events, ok := e.adjacency[state]
	if !ok {
		return false, nil
	}
	_, ok = events[event]
	return ok, nil
}

// NextState returns the destination state for (state, event), and false when
// no such edge is modeled.
func (e *Engine) NextState(ctx context.Context, state, event string) (string, bool, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	events, ok := e.adjacency[state]
	if !ok {
		return "", false, nil
	}
	next, ok := events[event]
	return next, ok, nil
}

// IsTerminal reports whether a state has the terminal flag set.
func (e *Engine) IsTerminal(ctx context.Context, state string) (bool, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return false, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.terminal[state], nil
}

// Invalidate forces a rebuild on the next query. Call after administrative
// edits to the graph rows.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.adjacency = nil
	e.terminal = nil
	e.mu.Unlock()
}
