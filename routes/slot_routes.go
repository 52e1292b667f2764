package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/controllers/slot_controller"
	middleware "github.com/joy095/booking-core/middlewares"
)

// RegisterSlotRoutes wires the public availability read endpoints. Browsing
// needs no account, only an edge rate limit.
func RegisterSlotRoutes(r *gin.Engine, svc *slot_controller.SlotService) {
	r.GET("/businesses/:business_id/slots",
		middleware.NewRateLimiter("60-1m", "listSlots"),
		svc.GetAvailableSlots,
	)
	r.GET("/slots/:slot_id",
		middleware.NewRateLimiter("60-1m", "getSlot"),
		svc.GetSlot,
	)
}
