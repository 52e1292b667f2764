package booking_models

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

// Booking represents a customer's claim on a slot, tracked through the status
// lifecycle defined by the persisted transition graph. Bookings are never
// deleted, only transitioned to a terminal status.
type Booking struct {
	ID             uuid.UUID `json:"id"`
	BusinessID     uuid.UUID `json:"business_id"`
	SlotID         uuid.UUID `json:"slot_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email"`
	CustomerPhone  string    `json:"customer_phone"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReservationResult is what the atomic reserve primitive reports back.
type ReservationResult struct {
	Outcome string   `json:"outcome"`
	Booking *Booking `json:"booking,omitempty"`
}

// NewBooking creates a new Booking struct in pending status.
func NewBooking(businessID, slotID, customerID uuid.UUID, customerName, customerEmail, customerPhone, idempotencyKey string) (*Booking, error) {
	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for booking: %w", err)
	}
	now := time.Now()
	return &Booking{
		ID:             id,
		BusinessID:     businessID,
		SlotID:         slotID,
		CustomerID:     customerID,
		CustomerName:   customerName,
		CustomerEmail:  customerEmail,
		CustomerPhone:  customerPhone,
		Status:         shared_models.BookingStatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

const bookingColumns = `id, business_id, slot_id, customer_id, customer_name, customer_email, customer_phone, status, idempotency_key, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(
		&b.ID, &b.BusinessID, &b.SlotID, &b.CustomerID, &b.CustomerName,
		&b.CustomerEmail, &b.CustomerPhone, &b.Status, &b.IdempotencyKey, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookingByID fetches a booking record by its ID.
func GetBookingByID(ctx context.Context, db shared_models.DB, bookingID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(db.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnLogger.Warnf("Booking with ID %s not found", bookingID)
			return nil, fmt.Errorf("%w: booking %s", utils.ErrNotFound, bookingID)
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		return nil, fmt.Errorf("database error fetching booking: %w", err)
	}
	return booking, nil
}

// ReserveSlotBooking is the atomic reserve-or-report primitive. Within a single
// transaction it claims the idempotency key, flips the slot from available to
// reserved and inserts the pending booking. Concurrent callers racing for the
// same slot see exactly one winner; concurrent callers sharing a key see
// exactly one creator, the rest get the creator's booking back.
func ReserveSlotBooking(ctx context.Context, db shared_models.DB, booking *Booking, reservationTTL time.Duration) (*ReservationResult, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin reservation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	// Claim the idempotency key. On conflict with a live claim this blocks
	// until the competing transaction finishes, then reports zero rows.
	tag, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (key, owner_id, status, expires_at, created_at)
		VALUES ($1, $2, 'in_progress', $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		booking.IdempotencyKey, booking.CustomerID, now.Add(reservationTTL), now,
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to claim idempotency key %s: %v", booking.IdempotencyKey, err)
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Key already consumed: report the prior booking, or in_progress when
		// the claim never finished (crashed attempt or a holder mid-flight).
		var keyStatus string
		var bookingID *uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, booking_id FROM booking_idempotency_keys WHERE key = $1`,
			booking.IdempotencyKey,
		).Scan(&keyStatus, &bookingID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect idempotency key: %w", err)
		}

		if keyStatus != "completed" || bookingID == nil {
			logger.WarnLogger.Warnf("Idempotency key %s is mid-flight, reporting in_progress", booking.IdempotencyKey)
			return &ReservationResult{Outcome: shared_models.OutcomeInProgress}, nil
		}

		prior, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, *bookingID))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prior booking for key: %w", err)
		}
		logger.InfoLogger.Infof("Idempotency key %s already consumed by booking %s", booking.IdempotencyKey, prior.ID)
		return &ReservationResult{Outcome: shared_models.OutcomeDuplicate, Booking: prior}, nil
	}

	// Flip the slot. Zero rows means it is not available right now; the
	// rollback also releases the key claim so a later retry can succeed once
	// the slot frees up.
	reservedUntil := now.Add(reservationTTL)
	tag, err = tx.Exec(ctx, `
		UPDATE slots
		SET status = 'reserved', reserved_until = $2, updated_at = $3
		WHERE id = $1 AND status = 'available'`,
		booking.SlotID, reservedUntil, now,
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to reserve slot %s: %v", booking.SlotID, err)
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.WarnLogger.Warnf("Slot %s is not available, rejecting booking", booking.SlotID)
		return nil, fmt.Errorf("%w: slot %s", utils.ErrSlotUnavailable, booking.SlotID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		booking.ID, booking.BusinessID, booking.SlotID, booking.CustomerID,
		booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone, booking.Status,
		booking.IdempotencyKey, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to insert booking for slot %s: %v", booking.SlotID, err)
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET status = 'completed', booking_id = $2
		WHERE key = $1`,
		booking.IdempotencyKey, booking.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s created, slot %s reserved until %s", booking.ID, booking.SlotID, reservedUntil)
	return &ReservationResult{Outcome: shared_models.OutcomeCreated, Booking: booking}, nil
}

// TransitionBooking applies a graph-validated status transition and its slot
// side effect as one transaction. The caller resolves toStatus through the
// state machine first; the WHERE guards re-check under the store's isolation
// so a racing writer makes this a conflict, never a double apply.
func TransitionBooking(ctx context.Context, db shared_models.DB, booking *Booking, event, toStatus string, reservationTTL time.Duration) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		booking.ID, booking.Status, toStatus, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: booking %s is no longer %s", utils.ErrConflict, booking.ID, booking.Status)
	}

	switch event {
	case shared_models.EventAccept:
		tag, err = tx.Exec(ctx, `
			UPDATE slots SET status = 'booked', reserved_until = NULL, updated_at = $2
			WHERE id = $1 AND status = 'reserved'`,
			booking.SlotID, now,
		)
	case shared_models.EventUndoAccept:
		tag, err = tx.Exec(ctx, `
			UPDATE slots SET status = 'reserved', reserved_until = $2, updated_at = $3
			WHERE id = $1 AND status = 'booked'`,
			booking.SlotID, now.Add(reservationTTL), now,
		)
	case shared_models.EventUndoReject:
		// The slot was released when the booking was rejected; it may have
		// been taken or expired since.
		tag, err = tx.Exec(ctx, `
			UPDATE slots SET status = 'reserved', reserved_until = $2, updated_at = $3
			WHERE id = $1 AND status = 'available'`,
			booking.SlotID, now.Add(reservationTTL), now,
		)
		if err == nil && tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: slot %s", utils.ErrSlotUnavailable, booking.SlotID)
		}
	case shared_models.EventReject, shared_models.EventCancel, shared_models.EventExpire:
		tag, err = tx.Exec(ctx, `
			UPDATE slots
			SET status = CASE WHEN end_time < $2 THEN 'expired' ELSE 'available' END,
			    reserved_until = NULL, updated_at = $2
			WHERE id = $1 AND status IN ('reserved', 'booked')`,
			booking.SlotID, now,
		)
	default:
		// reschedule and any future graph-only events have no slot effect
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transition: %w", err)
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to update slot for event %s: %w", event, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %s state disagrees with booking %s", utils.ErrConflict, booking.SlotID, booking.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s transitioned %s -> %s via %s", booking.ID, booking.Status, toStatus, event)
	return nil
}

// GetBookingsByCustomer retrieves bookings for a customer with pagination and
// an optional status filter.
func GetBookingsByCustomer(ctx context.Context, db shared_models.DB, customerID uuid.UUID, status string, page, limit int) ([]Booking, int, error) {
	offset := (page - 1) * limit
	var bookings []Booking
	var totalCount int

	baseQuery := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = $1`
	countQuery := `SELECT COUNT(*) FROM bookings WHERE customer_id = $1`

	var query string
	args := []interface{}{customerID}

	if status != "" {
		baseQuery += " AND status = $2"
		countQuery += " AND status = $2"
		args = append(args, status)
		query = baseQuery + " ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	} else {
		query = baseQuery + " ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	}
	args = append(args, limit, offset)

	if err := db.QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&totalCount); err != nil {
		logger.ErrorLogger.Errorf("Failed to get booking count for customer %s: %v", customerID, err)
		return nil, 0, fmt.Errorf("failed to get booking count: %w", err)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch bookings for customer %s: %v", customerID, err)
		return nil, 0, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, totalCount, rows.Err()
}

// CountRecentBookingsByCustomer counts bookings a customer created within the
// trailing window. Used by the abuse detector.
func CountRecentBookingsByCustomer(ctx context.Context, db shared_models.DB, customerID uuid.UUID, window time.Duration) (int, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE customer_id = $1 AND created_at > $2`,
		customerID, time.Now().Add(-window),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent bookings: %w", err)
	}
	return count, nil
}

// CountRecentByCustomerAndStatus counts a customer's bookings in a status
// within the trailing window.
func CountRecentByCustomerAndStatus(ctx context.Context, db shared_models.DB, customerID uuid.UUID, status string, window time.Duration) (int, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE customer_id = $1 AND status = $2 AND updated_at > $3`,
		customerID, status, time.Now().Add(-window),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent %s bookings: %w", status, err)
	}
	return count, nil
}
