package booking_controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joy095/booking-core/guards"
	"github.com/joy095/booking-core/healer"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/middlewares/auth"
	"github.com/joy095/booking-core/models/booking_models"
	"github.com/joy095/booking-core/models/payment_models"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/permissions"
	"github.com/joy095/booking-core/statemachine"
	"github.com/joy095/booking-core/utils"
)

// IdempotencyKeyHeader lets callers supply their own key instead of the
// payload-derived one.
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateBookingRequest represents the data required to book a slot.
type CreateBookingRequest struct {
	BusinessID    uuid.UUID `json:"business_id" binding:"required"`
	SlotID        uuid.UUID `json:"slot_id" binding:"required"`
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
	CustomerPhone string    `json:"customer_phone"`
	Amount        int64     `json:"amount" binding:"required,gt=0"`
}

// TransitionRequest names the lifecycle event to apply to a booking.
type TransitionRequest struct {
	Event string `json:"event" binding:"required"`
}

// BookingService handles the booking lifecycle: idempotent creation against
// the atomic reserve primitive, graph-validated status transitions, and the
// on-demand expiry sweep.
type BookingService struct {
	DB             shared_models.DB
	Engine         *statemachine.Engine
	Graph          *permissions.Graph
	Healer         *healer.Healer
	Limiter        guards.RateLimiter
	Abuse          *guards.AbuseDetector
	ReservationTTL time.Duration
}

// NewBookingService creates a new BookingService.
func NewBookingService(db shared_models.DB, engine *statemachine.Engine, graph *permissions.Graph, h *healer.Healer, limiter guards.RateLimiter, abuse *guards.AbuseDetector, reservationTTL time.Duration) *BookingService {
	return &BookingService{
		DB:             db,
		Engine:         engine,
		Graph:          graph,
		Healer:         h,
		Limiter:        limiter,
		Abuse:          abuse,
		ReservationTTL: reservationTTL,
	}
}

// healLazily reclaims elapsed reservations before a slot-affecting operation
// looks at anything. A failed pass is logged, not fatal: the atomic
// primitives re-check slot state under their own transaction anyway.
func (s *BookingService) healLazily(c *gin.Context) {
	if s.Healer == nil {
		return
	}
	if _, err := s.Healer.HealExpired(c.Request.Context()); err != nil {
		logger.ErrorLogger.Errorf("Lazy healing pass failed: %v", err)
	}
}

// CreateBooking turns a customer's submission into a durable pending booking.
// Exactly one booking is ever created per idempotency key; retries get the
// original back.
func (s *BookingService) CreateBooking(c *gin.Context) {
	customerID, err := auth.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Authentication required."})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid booking payload", "details": err.Error()})
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		key = utils.DeriveIdempotencyKey(req.BusinessID, req.SlotID, customerID)
	} else if err := utils.ValidateIdempotencyKey(key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	allowed, err := s.Limiter.Allow(ctx, "create_booking", customerID.String())
	if err != nil {
		logger.ErrorLogger.Errorf("Rate limiter failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_ERROR", "error": "Could not check rate limit."})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"code": "RATE_LIMITED", "error": "Too many booking attempts, slow down."})
		return
	}

	s.healLazily(c)

	if s.Abuse != nil {
		blocked, reason, err := s.Abuse.Check(ctx, customerID)
		if err != nil {
			logger.ErrorLogger.Errorf("Abuse check failure for customer %s: %v", customerID, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_ERROR", "error": "Could not verify booking eligibility."})
			return
		}
		if blocked {
			c.JSON(http.StatusTooManyRequests, gin.H{"code": "ABUSE_BLOCKED", "error": reason})
			return
		}
	}

	booking, err := booking_models.NewBooking(req.BusinessID, req.SlotID, customerID, req.CustomerName, req.CustomerEmail, req.CustomerPhone, key)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to build booking: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Internal error creating booking."})
		return
	}

	result, err := booking_models.ReserveSlotBooking(ctx, s.DB, booking, s.ReservationTTL)
	if err != nil {
		if errors.Is(err, utils.ErrSlotUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"code": "SLOT_UNAVAILABLE", "error": "This slot is no longer available."})
			return
		}
		logger.ErrorLogger.Errorf("Reservation primitive failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to create booking."})
		return
	}

	switch result.Outcome {
	case shared_models.OutcomeCreated:
		payment, err := payment_models.NewPayment(booking.ID, req.Amount, "razorpay", booking.ID.String())
		if err == nil {
			err = payment_models.CreatePayment(ctx, s.DB, payment)
		}
		if err != nil {
			// The booking and reservation are committed; the duplicate path
			// recreates the payment row when the caller retries.
			logger.ErrorLogger.Errorf("Failed to record payment attempt for booking %s: %v", booking.ID, err)
			c.JSON(http.StatusCreated, gin.H{"outcome": result.Outcome, "booking": booking})
			return
		}

		go func(bookingID uuid.UUID) {
			logger.InfoLogger.Infof("Dispatching booking-created notification and payment reminder for %s", bookingID)
		}(booking.ID)

		c.JSON(http.StatusCreated, gin.H{"outcome": result.Outcome, "booking": booking, "payment_id": payment.ID})

	case shared_models.OutcomeDuplicate:
		existing := result.Booking
		payment, err := payment_models.GetPaymentByIdempotencyKey(ctx, s.DB, existing.ID.String())
		if errors.Is(err, utils.ErrNotFound) {
			// The creator's payment insert can fail after the booking commits;
			// recreate it here so the retry still has a payable attempt.
			payment, err = payment_models.NewPayment(existing.ID, req.Amount, "razorpay", existing.ID.String())
			if err == nil {
				err = payment_models.CreatePayment(ctx, s.DB, payment)
			}
		}
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to resolve payment attempt for booking %s: %v", existing.ID, err)
			c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome, "booking": existing})
			return
		}
		c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome, "booking": existing, "payment_id": payment.ID})

	case shared_models.OutcomeInProgress:
		c.JSON(http.StatusConflict, gin.H{"code": "IN_PROGRESS", "outcome": result.Outcome, "error": "A request with this idempotency key is in progress, retry shortly."})

	default:
		logger.ErrorLogger.Errorf("Unexpected reservation outcome %q", result.Outcome)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Unexpected reservation outcome."})
	}
}

// TransitionBooking applies a lifecycle event (accept, reject, cancel,
// reschedule, undo_accept, undo_reject) to a booking. Events not modeled in
// the graph for the booking's current state are rejected without mutation.
func (s *BookingService) TransitionBooking(c *gin.Context) {
	actorID, err := auth.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Authentication required."})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid booking id."})
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Event name is required."})
		return
	}
	if req.Event == shared_models.EventConfirm {
		// Payment-triggered confirmation only happens through the webhook
		// path, where the payment row is settled in the same transaction.
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "This event is driven by the payment flow."})
		return
	}

	ctx := c.Request.Context()
	s.healLazily(c)

	booking, err := booking_models.GetBookingByID(ctx, s.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "Booking not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch booking."})
		return
	}

	// Customers may cancel or reschedule their own booking. Everything else
	// (accepting, rejecting, undoing on other people's bookings) needs the
	// transition permission.
	isOwner := booking.CustomerID == actorID
	ownerEvent := req.Event == shared_models.EventCancel || req.Event == shared_models.EventReschedule
	if !(isOwner && ownerEvent) {
		allowed, err := s.Graph.HasPermission(ctx, actorID, shared_models.PermissionBookingTransition)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Could not verify permissions."})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"code": "ACCESS_DENIED", "error": "You cannot apply this event to this booking."})
			return
		}
	}

	next, ok, err := s.Engine.NextState(ctx, booking.Status, req.Event)
	if err != nil {
		logger.ErrorLogger.Errorf("State graph unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_ERROR", "error": "Transition rules are unavailable, try again."})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"code":  "ILLEGAL_TRANSITION",
			"error": "Event " + req.Event + " is not allowed from state " + booking.Status + ".",
		})
		return
	}

	err = booking_models.TransitionBooking(ctx, s.DB, booking, req.Event, next, s.ReservationTTL)
	if err != nil {
		if errors.Is(err, utils.ErrSlotUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"code": "SLOT_UNAVAILABLE", "error": "The slot has been taken since, cannot restore this booking."})
			return
		}
		if errors.Is(err, utils.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"code": "CONFLICT", "error": "Booking changed concurrently, refresh and retry."})
			return
		}
		logger.ErrorLogger.Errorf("Transition %s on booking %s failed: %v", req.Event, bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to apply transition."})
		return
	}

	logger.InfoLogger.Infof("Actor %s applied %s to booking %s (%s -> %s)", actorID, req.Event, bookingID, booking.Status, next)
	c.JSON(http.StatusOK, gin.H{"booking_id": bookingID, "event": req.Event, "from": booking.Status, "to": next})
}

// GetBooking returns one booking. Customers see their own bookings; anyone
// else needs the read permission.
func (s *BookingService) GetBooking(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Authentication required."})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid booking id."})
		return
	}

	ctx := c.Request.Context()
	booking, err := booking_models.GetBookingByID(ctx, s.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "Booking not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch booking."})
		return
	}

	if booking.CustomerID != userID {
		allowed, err := s.Graph.HasPermission(ctx, userID, shared_models.PermissionBookingRead)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Could not verify permissions."})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"code": "ACCESS_DENIED", "error": "You cannot view this booking."})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// GetMyBookings lists the caller's bookings with pagination and an optional
// status filter.
func (s *BookingService) GetMyBookings(c *gin.Context) {
	customerID, err := auth.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Authentication required."})
		return
	}

	page := 1
	limit := 20
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	bookings, total, err := booking_models.GetBookingsByCustomer(c.Request.Context(), s.DB, customerID, c.Query("status"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch bookings."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": total, "page": page, "limit": limit})
}

// SweepExpired runs one bounded healing pass and reports how many rows it
// reclaimed. Admin-gated; the scheduler hits the same code path internally.
func (s *BookingService) SweepExpired(c *gin.Context) {
	processed, err := s.Healer.HealExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Healing pass failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
