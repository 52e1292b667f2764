package slot_controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/models/slot_models"
	"github.com/joy095/booking-core/utils"
)

// SlotService serves the read side of slot availability so customers can
// browse before booking. Slot creation belongs to scheduling tooling, not
// this service.
type SlotService struct {
	DB shared_models.DB
}

// NewSlotService creates a new SlotService.
func NewSlotService(db shared_models.DB) *SlotService {
	return &SlotService{DB: db}
}

// effectiveStatus presents a reserved slot whose hold has elapsed as already
// released. The durable flip happens in the healing pass; reads should not
// show a hold that no longer counts.
func effectiveStatus(s *slot_models.Slot, now time.Time) string {
	if s.Status == shared_models.SlotStatusReserved && s.ReservedUntil != nil && s.ReservedUntil.Before(now) {
		return slot_models.ReleaseStatus(s, now)
	}
	return s.Status
}

// GetSlot returns one slot with its effective status.
func (s *SlotService) GetSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("slot_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid slot id."})
		return
	}

	slot, err := slot_models.GetSlotByID(c.Request.Context(), s.DB, slotID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "Slot not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch slot."})
		return
	}

	slot.Status = effectiveStatus(slot, time.Now())
	c.JSON(http.StatusOK, gin.H{"slot": slot})
}

// GetAvailableSlots lists a business's open slots from a given date onwards
// (default today).
func (s *SlotService) GetAvailableSlots(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("business_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "Invalid business id."})
		return
	}

	from := time.Now().Truncate(24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_FAILED", "error": "from must be YYYY-MM-DD."})
			return
		}
		from = parsed
	}

	slots, err := slot_models.GetAvailableSlotsByBusiness(c.Request.Context(), s.DB, businessID, from)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Failed to fetch slots."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots, "from": from.Format("2006-01-02")})
}
