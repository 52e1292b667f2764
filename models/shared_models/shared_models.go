package shared_models

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the data layer depends on. Production code
// passes the pool; tests pass a mock satisfying the same calls.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Slot statuses.
const (
	SlotStatusAvailable = "available"
	SlotStatusReserved  = "reserved"
	SlotStatusBooked    = "booked"
	SlotStatusExpired   = "expired"
)

// Booking statuses. The authoritative lifecycle lives in the persisted
// transition graph; these names only exist so queries and handlers can refer
// to the common ones without typos.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusRejected  = "rejected"
	BookingStatusCancelled = "cancelled"
	BookingStatusExpired   = "expired"
)

// Booking lifecycle events.
const (
	EventAccept     = "accept"
	EventReject     = "reject"
	EventCancel     = "cancel"
	EventReschedule = "reschedule"
	EventUndoAccept = "undo_accept"
	EventUndoReject = "undo_reject"
	EventExpire     = "expire"
	EventConfirm    = "confirm_payment"
)

// Payment statuses.
const (
	PaymentStatusInitiated  = "initiated"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

// Reservation outcomes returned by the atomic reserve primitive.
const (
	OutcomeCreated    = "created"
	OutcomeDuplicate  = "duplicate"
	OutcomeInProgress = "in_progress"
)

// Permission names consumed by the authorization gate.
const (
	PermissionBookingCreate     = "booking:create"
	PermissionBookingTransition = "booking:transition"
	PermissionBookingRead       = "booking:read"
	PermissionHealingTrigger    = "healing:trigger"
)

// GenerateUUIDv7 generates a new UUIDv7.
func GenerateUUIDv7() (uuid.UUID, error) {
	return uuid.NewV7()
}
