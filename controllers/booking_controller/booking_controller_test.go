package booking_controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joy095/booking-core/guards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(svc *BookingService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}
	r.POST("/bookings", svc.CreateBooking)
	r.POST("/bookings/:booking_id/transition", svc.TransitionBooking)
	return r
}

func validCreateBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(gin.H{
		"business_id":    uuid.New(),
		"slot_id":        uuid.New(),
		"customer_name":  "Asha Rao",
		"customer_email": "asha@example.com",
		"customer_phone": "+911234567890",
		"amount":         50000,
	})
	require.NoError(t, err)
	return body
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, guards.NewMemoryRateLimiter(10, time.Minute), nil, 10*time.Minute)
	r := testRouter(svc, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(validCreateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBookingValidation(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, guards.NewMemoryRateLimiter(10, time.Minute), nil, 10*time.Minute)
	r := testRouter(svc, uuid.New().String())

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing slot", gin.H{"business_id": uuid.New(), "customer_name": "A", "customer_email": "a@example.com", "amount": 100}},
		{"missing name", gin.H{"business_id": uuid.New(), "slot_id": uuid.New(), "customer_email": "a@example.com", "amount": 100}},
		{"bad email", gin.H{"business_id": uuid.New(), "slot_id": uuid.New(), "customer_name": "A", "customer_email": "not-an-email", "amount": 100}},
		{"zero amount", gin.H{"business_id": uuid.New(), "slot_id": uuid.New(), "customer_name": "A", "customer_email": "a@example.com", "amount": 0}},
		{"negative amount", gin.H{"business_id": uuid.New(), "slot_id": uuid.New(), "customer_name": "A", "customer_email": "a@example.com", "amount": -5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.body)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
		})
	}
}

func TestCreateBookingRejectsMalformedIdempotencyKey(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, guards.NewMemoryRateLimiter(10, time.Minute), nil, 10*time.Minute)
	r := testRouter(svc, uuid.New().String())

	for _, key := range []string{"short", "UPPERCASE", fmt.Sprintf("%065d", 0)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(validCreateBody(t)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(IdempotencyKeyHeader, key)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, key)
		assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	}
}

func TestCreateBookingRateLimited(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, guards.NewMemoryRateLimiter(0, time.Minute), nil, 10*time.Minute)
	r := testRouter(svc, uuid.New().String())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(validCreateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestTransitionValidation(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, guards.NewMemoryRateLimiter(10, time.Minute), nil, 10*time.Minute)
	r := testRouter(svc, uuid.New().String())

	t.Run("InvalidBookingID", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings/not-a-uuid/transition", bytes.NewReader([]byte(`{"event":"accept"}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingEvent", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.New().String()+"/transition", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("PaymentEventNotCallable", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.New().String()+"/transition", bytes.NewReader([]byte(`{"event":"confirm_payment"}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "payment flow")
	})
}
