package guards

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/booking_models"
	"github.com/joy095/booking-core/models/payment_models"
	"github.com/joy095/booking-core/models/shared_models"
)

// AbuseDetector runs query-time heuristics over a customer's recent history
// to flag hoarding and excessive-attempt patterns. It is an advisory gate in
// front of booking creation and confirmation; the atomicity guarantees do not
// depend on it.
type AbuseDetector struct {
	db shared_models.DB

	Window             time.Duration
	MaxBookings        int
	MaxFailedPayments  int
	MaxExpiredRatioPct int
	MinSampleForRatio  int
}

// NewAbuseDetector creates a detector with the given trailing window and
// thresholds.
func NewAbuseDetector(db shared_models.DB, window time.Duration, maxBookings, maxFailedPayments, maxExpiredRatioPct int) *AbuseDetector {
	return &AbuseDetector{
		db:                 db,
		Window:             window,
		MaxBookings:        maxBookings,
		MaxFailedPayments:  maxFailedPayments,
		MaxExpiredRatioPct: maxExpiredRatioPct,
		MinSampleForRatio:  5,
	}
}

// Check returns whether the action should be blocked, with a human-readable
// reason. Heuristic failures are surfaced so callers can decide; they should
// not silently turn into an allow for a flagged pattern.
func (d *AbuseDetector) Check(ctx context.Context, customerID uuid.UUID) (bool, string, error) {
	total, err := booking_models.CountRecentBookingsByCustomer(ctx, d.db, customerID, d.Window)
	if err != nil {
		return false, "", fmt.Errorf("abuse check failed: %w", err)
	}
	if total >= d.MaxBookings {
		logger.WarnLogger.Warnf("Customer %s blocked: %d bookings in window", customerID, total)
		return true, fmt.Sprintf("too many bookings in the last %s", d.Window), nil
	}

	failed, err := payment_models.CountRecentFailedPaymentsByCustomer(ctx, d.db, customerID, d.Window)
	if err != nil {
		return false, "", fmt.Errorf("abuse check failed: %w", err)
	}
	if failed >= d.MaxFailedPayments {
		logger.WarnLogger.Warnf("Customer %s blocked: %d failed payments in window", customerID, failed)
		return true, fmt.Sprintf("too many failed payments in the last %s", d.Window), nil
	}

	// A high expired-to-created ratio means slots are being held and dropped
	// without completing payment (hoarding).
	expired, err := booking_models.CountRecentByCustomerAndStatus(ctx, d.db, customerID, shared_models.BookingStatusExpired, d.Window)
	if err != nil {
		return false, "", fmt.Errorf("abuse check failed: %w", err)
	}
	if total >= d.MinSampleForRatio && expired*100 >= total*d.MaxExpiredRatioPct {
		logger.WarnLogger.Warnf("Customer %s blocked: %d of %d recent bookings expired", customerID, expired, total)
		return true, "too many reservations left to expire", nil
	}

	return false, "", nil
}
