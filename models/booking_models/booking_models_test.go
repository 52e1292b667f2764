package booking_models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/utils"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(uuid.New(), uuid.New(), uuid.New(),
		"Asha Rao", "asha@example.com", "+911234567890", strings.Repeat("ab", 32))
	require.NoError(t, err)
	return b
}

func bookingRows(b *Booking) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "business_id", "slot_id", "customer_id", "customer_name",
		"customer_email", "customer_phone", "status", "idempotency_key", "created_at", "updated_at",
	}).AddRow(
		b.ID, b.BusinessID, b.SlotID, b.CustomerID, b.CustomerName,
		b.CustomerEmail, b.CustomerPhone, b.Status, b.IdempotencyKey, b.CreatedAt, b.UpdatedAt,
	)
}

func TestReserveSlotBookingCreated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(b.IdempotencyKey, b.CustomerID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("SET status = 'reserved', reserved_until").
		WithArgs(b.SlotID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, b.BusinessID, b.SlotID, b.CustomerID,
			b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Status,
			b.IdempotencyKey, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE booking_idempotency_keys").
		WithArgs(b.IdempotencyKey, b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	result, err := ReserveSlotBooking(context.Background(), mock, b, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared_models.OutcomeCreated, result.Outcome)
	assert.Equal(t, b.ID, result.Booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSlotBookingDuplicateReturnsPriorBooking(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	prior := newTestBooking(t)
	retry, err := NewBooking(prior.BusinessID, prior.SlotID, prior.CustomerID,
		prior.CustomerName, prior.CustomerEmail, prior.CustomerPhone, prior.IdempotencyKey)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT status, booking_id FROM booking_idempotency_keys").
		WithArgs(prior.IdempotencyKey).
		WillReturnRows(pgxmock.NewRows([]string{"status", "booking_id"}).AddRow("completed", &prior.ID))
	mock.ExpectQuery("FROM bookings WHERE id").
		WithArgs(prior.ID).
		WillReturnRows(bookingRows(prior))
	mock.ExpectRollback()

	result, err := ReserveSlotBooking(context.Background(), mock, retry, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared_models.OutcomeDuplicate, result.Outcome)
	assert.Equal(t, prior.ID, result.Booking.ID, "retries must observe the creator's booking id")
	assert.NotEqual(t, retry.ID, result.Booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSlotBookingMidFlightKeyIsInProgress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT status, booking_id FROM booking_idempotency_keys").
		WithArgs(b.IdempotencyKey).
		WillReturnRows(pgxmock.NewRows([]string{"status", "booking_id"}).AddRow("in_progress", (*uuid.UUID)(nil)))
	mock.ExpectRollback()

	result, err := ReserveSlotBooking(context.Background(), mock, b, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared_models.OutcomeInProgress, result.Outcome)
	assert.Nil(t, result.Booking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSlotBookingUnavailableSlotIsNotDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("SET status = 'reserved', reserved_until").
		WithArgs(b.SlotID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	result, err := ReserveSlotBooking(context.Background(), mock, b, 10*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSlotUnavailable)
	assert.Nil(t, result, "a taken slot is a rejection, never a duplicate outcome")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionBookingConcurrentChangeIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = TransitionBooking(context.Background(), mock, b, shared_models.EventAccept, shared_models.BookingStatusConfirmed, 10*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionBookingCancelReleasesSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(b.ID, b.Status, shared_models.BookingStatusCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET status = CASE WHEN end_time").
		WithArgs(b.SlotID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = TransitionBooking(context.Background(), mock, b, shared_models.EventCancel, shared_models.BookingStatusCancelled, 10*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
