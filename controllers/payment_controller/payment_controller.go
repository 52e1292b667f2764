package payment_controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/clients"
	"github.com/joy095/booking-core/healer"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/booking_models"
	"github.com/joy095/booking-core/models/payment_models"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/statemachine"
	"github.com/joy095/booking-core/utils"
	"github.com/joy095/booking-core/utils/mail"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "X-Razorpay-Signature"

// WebhookPayload is the slice of the provider webhook the engine cares about:
// which order, did it succeed, and why not. Everything else about the gateway
// protocol stays outside this service.
type WebhookPayload struct {
	Event   string `json:"event"` // "payment.captured", "payment.failed"
	Payload struct {
		Payment struct {
			Entity struct {
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentService turns verified payment signals into the atomic
// booking-confirmation transition.
type PaymentService struct {
	DB       shared_models.DB
	Engine   *statemachine.Engine
	Verifier clients.PaymentSignatureVerifier
	Healer   *healer.Healer
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db shared_models.DB, engine *statemachine.Engine, verifier clients.PaymentSignatureVerifier, h *healer.Healer) *PaymentService {
	return &PaymentService{DB: db, Engine: engine, Verifier: verifier, Healer: h}
}

// HandleWebhook processes payment success/failure signals. Success attempts
// the atomic payment-completed + booking-confirmed + slot-booked transition;
// a conflict (reservation expired, booking moved on) marks the payment failed
// and answers 409. Replayed webhooks for settled payments are no-ops.
func (s *PaymentService) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Could not read webhook body."})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !s.Verifier.VerifyWebhookSignature(signature, string(body)) {
		logger.ErrorLogger.Error("Webhook signature verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_SIGNATURE", "error": "Webhook signature verification failed."})
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.ErrorLogger.Errorf("Failed to parse webhook payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid webhook payload."})
		return
	}

	if payload.Event != "payment.captured" && payload.Event != "payment.failed" {
		logger.InfoLogger.Infof("Unhandled webhook event type: %s", payload.Event)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	orderID := payload.Payload.Payment.Entity.OrderID
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Order id missing from webhook."})
		return
	}

	ctx := c.Request.Context()

	payment, err := payment_models.GetPaymentByIdempotencyKey(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "No payment attempt recorded for this order."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to look up payment."})
		return
	}

	// Replays of settled payments must not mutate anything.
	if payment.Status == shared_models.PaymentStatusCompleted || payment.Status == shared_models.PaymentStatusFailed {
		logger.InfoLogger.Infof("Webhook for payment %s already processed (%s), skipping", payment.ID, payment.Status)
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	}

	if payload.Payload.Payment.Entity.Amount != 0 && payload.Payload.Payment.Entity.Amount != payment.Amount {
		logger.ErrorLogger.Errorf("Amount mismatch in webhook for payment %s: expected %d, got %d",
			payment.ID, payment.Amount, payload.Payload.Payment.Entity.Amount)
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Payment amount mismatch."})
		return
	}

	if payload.Event == "payment.failed" {
		reason := payload.Payload.Payment.Entity.ErrorDescription
		if reason == "" {
			reason = "payment failed at provider"
		}
		if err := payment_models.MarkPaymentFailed(ctx, s.DB, payment.ID, reason); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to record payment failure."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "payment_failed_recorded"})
		return
	}

	// Reclaim any elapsed reservation first so an expired hold surfaces as a
	// clean conflict instead of confirming against a stale slot.
	if s.Healer != nil {
		if _, err := s.Healer.HealExpired(ctx); err != nil {
			logger.ErrorLogger.Errorf("Lazy healing pass failed: %v", err)
		}
	}

	booking, err := booking_models.GetBookingByID(ctx, s.DB, payment.BookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch booking for payment."})
		return
	}

	if booking.Status == shared_models.BookingStatusConfirmed {
		logger.InfoLogger.Infof("Booking %s already confirmed, webhook is a no-op", booking.ID)
		c.JSON(http.StatusOK, gin.H{"status": "already_confirmed", "booking_id": booking.ID})
		return
	}

	ok, err := s.Engine.CanTransition(ctx, booking.Status, shared_models.EventConfirm)
	if err != nil {
		logger.ErrorLogger.Errorf("State graph unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_ERROR", "error": "Transition rules are unavailable, retry the webhook."})
		return
	}
	if !ok {
		reason := "booking in state " + booking.Status + " cannot be confirmed"
		_ = payment_models.MarkPaymentFailed(ctx, s.DB, payment.ID, reason)
		c.JSON(http.StatusConflict, gin.H{"code": "CONFLICT", "error": reason})
		return
	}

	err = payment_models.ConfirmBookingWithPayment(ctx, s.DB, payment.ID, booking.ID, booking.SlotID)
	if err != nil {
		if errors.Is(err, utils.ErrConflict) {
			// A legitimate race: the reservation expired or the booking moved
			// on between payment and confirmation.
			logger.WarnLogger.Warnf("Confirmation conflict for booking %s: %v", booking.ID, err)
			_ = payment_models.MarkPaymentFailed(ctx, s.DB, payment.ID, err.Error())
			c.JSON(http.StatusConflict, gin.H{"code": "CONFLICT", "error": "Booking could not be confirmed, payment marked failed."})
			return
		}
		// The primitive may have committed just before a timeout; leave the
		// payment alone and let the provider retry the webhook.
		logger.ErrorLogger.Errorf("Confirmation primitive failed for booking %s: %v", booking.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_ERROR", "error": "Confirmation could not be completed, retry shortly."})
		return
	}

	go func(b booking_models.Booking) {
		if err := mail.SendBookingConfirmed(b.CustomerEmail, b.CustomerName, b.ID.String()); err != nil {
			logger.ErrorLogger.Errorf("Best-effort confirmation mail failed for booking %s: %v", b.ID, err)
		}
	}(*booking)

	c.JSON(http.StatusOK, gin.H{"status": "confirmed", "booking_id": booking.ID})
}
