package slot_controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/models/slot_models"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		slot slot_models.Slot
		want string
	}{
		{
			"available slot unchanged",
			slot_models.Slot{Status: shared_models.SlotStatusAvailable},
			shared_models.SlotStatusAvailable,
		},
		{
			"live reservation unchanged",
			slot_models.Slot{Status: shared_models.SlotStatusReserved, ReservedUntil: &future},
			shared_models.SlotStatusReserved,
		},
		{
			"elapsed hold reads as available while the window is ahead",
			slot_models.Slot{Status: shared_models.SlotStatusReserved, ReservedUntil: &past, EndTime: now.Add(time.Hour)},
			shared_models.SlotStatusAvailable,
		},
		{
			"elapsed hold on a finished window reads as expired",
			slot_models.Slot{Status: shared_models.SlotStatusReserved, ReservedUntil: &past, EndTime: now.Add(-time.Hour)},
			shared_models.SlotStatusExpired,
		},
		{
			"booked slot unchanged even past the hold",
			slot_models.Slot{Status: shared_models.SlotStatusBooked, ReservedUntil: &past},
			shared_models.SlotStatusBooked,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, effectiveStatus(&tc.slot, now))
		})
	}
}

func TestSlotEndpointValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewSlotService(nil)
	r := gin.New()
	r.GET("/slots/:slot_id", svc.GetSlot)
	r.GET("/businesses/:business_id/slots", svc.GetAvailableSlots)

	t.Run("BadSlotID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slots/nope", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("BadBusinessID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/businesses/nope/slots", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("BadFromDate", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/businesses/8b7f3f2e-0000-7000-8000-000000000001/slots?from=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
