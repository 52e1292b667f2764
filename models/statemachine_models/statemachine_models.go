package statemachine_models

import (
	"context"
	"fmt"

	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/shared_models"
)

// BookingState is one named state in the persisted lifecycle graph.
type BookingState struct {
	Name       string `json:"name"`
	IsTerminal bool   `json:"is_terminal"`
}

// BookingStateTransition is one directed edge, labeled by event name. The
// graph rows are owned by administrative tooling; this service only reads
// them.
type BookingStateTransition struct {
	FromState string `json:"from_state"`
	Event     string `json:"event"`
	ToState   string `json:"to_state"`
}

// LoadBookingStates fetches every state row.
func LoadBookingStates(ctx context.Context, db shared_models.DB) ([]BookingState, error) {
	rows, err := db.Query(ctx, `SELECT name, is_terminal FROM booking_states`)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load booking states: %v", err)
		return nil, fmt.Errorf("failed to load booking states: %w", err)
	}
	defer rows.Close()

	var states []BookingState
	for rows.Next() {
		var s BookingState
		if err := rows.Scan(&s.Name, &s.IsTerminal); err != nil {
			return nil, fmt.Errorf("failed to scan booking state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// LoadBookingStateTransitions fetches every transition edge.
func LoadBookingStateTransitions(ctx context.Context, db shared_models.DB) ([]BookingStateTransition, error) {
	rows, err := db.Query(ctx, `SELECT from_state, event, to_state FROM booking_state_transitions`)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load booking state transitions: %v", err)
		return nil, fmt.Errorf("failed to load booking state transitions: %w", err)
	}
	defer rows.Close()

	var transitions []BookingStateTransition
	for rows.Next() {
		var t BookingStateTransition
		if err := rows.Scan(&t.FromState, &t.Event, &t.ToState); err != nil {
			return nil, fmt.Errorf("failed to scan booking state transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}
