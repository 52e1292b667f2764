package slot_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/utils"
)

// Slot represents one bookable time window for a business. Slots are created
// by scheduling tooling; this service only moves them through their statuses.
type Slot struct {
	ID            uuid.UUID  `json:"id"`
	BusinessID    uuid.UUID  `json:"business_id"`
	SlotDate      time.Time  `json:"slot_date"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// GetSlotByID fetches a slot by its ID.
func GetSlotByID(ctx context.Context, db shared_models.DB, slotID uuid.UUID) (*Slot, error) {
	slot := &Slot{}
	query := `
		SELECT id, business_id, slot_date, start_time, end_time, status, reserved_until, created_at, updated_at
		FROM slots
		WHERE id = $1`

	err := db.QueryRow(ctx, query, slotID).Scan(
		&slot.ID, &slot.BusinessID, &slot.SlotDate, &slot.StartTime, &slot.EndTime,
		&slot.Status, &slot.ReservedUntil, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnLogger.Warnf("Slot with ID %s not found", slotID)
			return nil, fmt.Errorf("%w: slot %s", utils.ErrNotFound, slotID)
		}
		logger.ErrorLogger.Errorf("Failed to fetch slot %s: %v", slotID, err)
		return nil, fmt.Errorf("database error fetching slot: %w", err)
	}

	return slot, nil
}

// GetAvailableSlotsByBusiness lists available slots for a business on or after
// the given date.
func GetAvailableSlotsByBusiness(ctx context.Context, db shared_models.DB, businessID uuid.UUID, from time.Time) ([]Slot, error) {
	query := `
		SELECT id, business_id, slot_date, start_time, end_time, status, reserved_until, created_at, updated_at
		FROM slots
		WHERE business_id = $1 AND status = 'available' AND slot_date >= $2
		ORDER BY slot_date, start_time`

	rows, err := db.Query(ctx, query, businessID, from)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch available slots for business %s: %v", businessID, err)
		return nil, fmt.Errorf("failed to fetch available slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(
			&s.ID, &s.BusinessID, &s.SlotDate, &s.StartTime, &s.EndTime,
			&s.Status, &s.ReservedUntil, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ReleaseStatus decides where a reclaimed slot goes: back to available when its
// window is still ahead, expired once the window end has passed.
func ReleaseStatus(s *Slot, now time.Time) string {
	if s.EndTime.Before(now) {
		return "expired"
	}
	return "available"
}
