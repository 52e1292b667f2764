package healer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/booking_models"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/statemachine"
	"github.com/joy095/booking-core/utils"
)

// Healer reclaims slots whose reservation window elapsed without a completed
// booking. Two paths share the same pass: HealExpired runs lazily at the top
// of every slot-affecting request, and Run sweeps on a timer so progress is
// guaranteed even with no traffic.
type Healer struct {
	db        shared_models.DB
	engine    *statemachine.Engine
	batchSize int
	interval  time.Duration
}

// New creates a healer processing at most batchSize rows per pass.
func New(db shared_models.DB, engine *statemachine.Engine, batchSize int, interval time.Duration) *Healer {
	return &Healer{db: db, engine: engine, batchSize: batchSize, interval: interval}
}

// HealExpired performs one bounded pass over elapsed reservations, applying
// the graph-validated expire transition to each. Rows whose current state has
// no expire edge are skipped, never fatal. Running the pass again with no new
// elapsed reservations is a no-op.
func (h *Healer) HealExpired(ctx context.Context) (int, error) {
	// Terminal bookings left behind by past reject/undo cycles still reference
	// the slot; only the live booking holding the reservation is a candidate.
	rows, err := h.db.Query(ctx, `
		SELECT b.id, b.business_id, b.slot_id, b.customer_id, b.customer_name,
		       b.customer_email, b.customer_phone, b.status, b.idempotency_key, b.created_at, b.updated_at
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		JOIN booking_states bs ON bs.name = b.status AND bs.is_terminal = FALSE
		WHERE s.status = 'reserved' AND s.reserved_until < $1
		ORDER BY s.reserved_until
		LIMIT $2`,
		time.Now(), h.batchSize,
	)
	if err != nil {
		logger.ErrorLogger.Errorf("Healing scan failed: %v", err)
		return 0, fmt.Errorf("healing scan failed: %w", err)
	}

	var stale []booking_models.Booking
	for rows.Next() {
		var b booking_models.Booking
		if err := rows.Scan(
			&b.ID, &b.BusinessID, &b.SlotID, &b.CustomerID, &b.CustomerName,
			&b.CustomerEmail, &b.CustomerPhone, &b.Status, &b.IdempotencyKey, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			rows.Close()
			return 0, fmt.Errorf("healing scan failed: %w", err)
		}
		stale = append(stale, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("healing scan failed: %w", err)
	}

	healed := 0
	for i := range stale {
		b := &stale[i]

		next, ok, err := h.engine.NextState(ctx, b.Status, shared_models.EventExpire)
		if err != nil {
			// Graph load failure is fatal for the pass; better to retry the
			// whole sweep than to guess at legality.
			return healed, err
		}
		if !ok {
			logger.WarnLogger.Warnf("No expire edge from state %s, skipping booking %s", b.Status, b.ID)
			continue
		}

		err = booking_models.TransitionBooking(ctx, h.db, b, shared_models.EventExpire, next, 0)
		if err != nil {
			if errors.Is(err, utils.ErrConflict) {
				// A concurrent request already moved this row on; that is the
				// idempotence we want.
				continue
			}
			logger.ErrorLogger.Errorf("Failed to expire booking %s: %v", b.ID, err)
			continue
		}
		healed++
	}

	if healed > 0 {
		logger.InfoLogger.Infof("Expiry healing reclaimed %d slot(s)", healed)
	}
	return healed, nil
}

// Run sweeps on the configured interval until ctx is done. Started from main
// as the catch-all when no request traffic triggers lazy healing.
func (h *Healer) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger.InfoLogger.Infof("Expiry sweeper started (every %s, batch %d)", h.interval, h.batchSize)
	for {
		select {
		case <-ctx.Done():
			logger.InfoLogger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := h.HealExpired(ctx); err != nil {
				logger.ErrorLogger.Errorf("Scheduled healing pass failed: %v", err)
			}
		}
	}
}
