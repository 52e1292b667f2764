package payment_models

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

// Payment represents one payment attempt tied to a booking.
type Payment struct {
	ID             uuid.UUID `json:"id"`
	BookingID      uuid.UUID `json:"booking_id"`
	Status         string    `json:"status"`
	Amount         int64     `json:"amount"`
	Provider       string    `json:"provider"`
	IdempotencyKey string    `json:"idempotency_key"`
	FailureReason  *string   `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewPayment creates a new Payment struct in initiated status.
func NewPayment(bookingID uuid.UUID, amount int64, provider, idempotencyKey string) (*Payment, error) {
	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for payment: %w", err)
	}
	now := time.Now()
	return &Payment{
		ID:             id,
		BookingID:      bookingID,
		Status:         shared_models.PaymentStatusInitiated,
		Amount:         amount,
		Provider:       provider,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

const paymentColumns = `id, booking_id, status, amount, provider, idempotency_key, failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(
		&p.ID, &p.BookingID, &p.Status, &p.Amount, &p.Provider,
		&p.IdempotencyKey, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePayment inserts a new payment record.
func CreatePayment(ctx context.Context, db shared_models.DB, payment *Payment) error {
	_, err := db.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.BookingID, payment.Status, payment.Amount, payment.Provider,
		payment.IdempotencyKey, payment.FailureReason, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to insert payment for booking %s: %v", payment.BookingID, err)
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByID fetches a payment record by its ID.
func GetPaymentByID(ctx context.Context, db shared_models.DB, paymentID uuid.UUID) (*Payment, error) {
	payment, err := scanPayment(db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %s", utils.ErrNotFound, paymentID)
		}
		logger.ErrorLogger.Errorf("Failed to fetch payment %s: %v", paymentID, err)
		return nil, fmt.Errorf("database error fetching payment: %w", err)
	}
	return payment, nil
}

// GetPaymentByIdempotencyKey fetches a payment by its provider idempotency key.
func GetPaymentByIdempotencyKey(ctx context.Context, db shared_models.DB, key string) (*Payment, error) {
	payment, err := scanPayment(db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment with key %s", utils.ErrNotFound, key)
		}
		logger.ErrorLogger.Errorf("Failed to fetch payment by key: %v", err)
		return nil, fmt.Errorf("database error fetching payment: %w", err)
	}
	return payment, nil
}

// ConfirmBookingWithPayment is the atomic confirm-with-payment primitive. In a
// single transaction the payment completes, the booking moves pending ->
// confirmed and the slot moves reserved -> booked; any guard failing rolls the
// whole thing back, leaving every row exactly as it was.
func ConfirmBookingWithPayment(ctx context.Context, db shared_models.DB, paymentID, bookingID, slotID uuid.UUID) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin confirmation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings SET status = 'confirmed', updated_at = $2
		WHERE id = $1 AND status = 'pending'`,
		bookingID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: booking %s is not pending", utils.ErrConflict, bookingID)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE slots SET status = 'booked', reserved_until = NULL, updated_at = $2
		WHERE id = $1 AND status = 'reserved'`,
		slotID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to book slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %s is not reserved (reservation may have expired)", utils.ErrConflict, slotID)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE payments SET status = 'completed', updated_at = $2
		WHERE id = $1 AND status IN ('initiated', 'processing')`,
		paymentID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s is not in a completable state", utils.ErrConflict, paymentID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit confirmation: %w", err)
	}

	logger.InfoLogger.Infof("Payment %s completed, booking %s confirmed, slot %s booked", paymentID, bookingID, slotID)
	return nil
}

// MarkPaymentFailed records a failure reason on a payment. Terminal payment
// rows are left alone so a late failure signal cannot clobber a completion.
func MarkPaymentFailed(ctx context.Context, db shared_models.DB, paymentID uuid.UUID, reason string) error {
	tag, err := db.Exec(ctx, `
		UPDATE payments SET status = 'failed', failure_reason = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		paymentID, reason, time.Now(),
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to mark payment %s as failed: %v", paymentID, err)
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.WarnLogger.Warnf("Payment %s already terminal, failure signal ignored", paymentID)
	}
	return nil
}

// CountRecentFailedPaymentsByCustomer counts failed payments tied to a
// customer's bookings within the trailing window. Used by the abuse detector.
func CountRecentFailedPaymentsByCustomer(ctx context.Context, db shared_models.DB, customerID uuid.UUID, window time.Duration) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE b.customer_id = $1 AND p.status = 'failed' AND p.updated_at > $2`,
		customerID, time.Now().Add(-window),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent failed payments: %w", err)
	}
	return count, nil
}
