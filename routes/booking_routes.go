package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/controllers/booking_controller"
	"github.com/joy095/booking-core/guards"
	middleware "github.com/joy095/booking-core/middlewares"
	"github.com/joy095/booking-core/middlewares/auth"
	"github.com/joy095/booking-core/models/shared_models"
	"github.com/joy095/booking-core/permissions"
)

// RegisterBookingRoutes wires the booking lifecycle endpoints. Mutating
// routes run the full gate chain: edge rate limit, auth, nonce replay guard,
// permission check, then the handler (which applies the engine's own
// fixed-window limiter and abuse heuristics).
func RegisterBookingRoutes(r *gin.Engine, svc *booking_controller.BookingService, graph *permissions.Graph, nonces guards.NonceStore) {
	bookings := r.Group("/bookings")
	bookings.Use(auth.AuthMiddleware())

	bookings.POST("",
		middleware.NewRateLimiter("20-1m", "createBooking"),
		middleware.NonceGuard(nonces),
		middleware.RequirePermission(graph, shared_models.PermissionBookingCreate),
		svc.CreateBooking,
	)

	// Authorization happens in the handler: it needs the booking row to tell
	// an owner cancelling their own booking from a business-side transition.
	bookings.POST("/:booking_id/transition",
		middleware.NewRateLimiter("30-1m", "transitionBooking"),
		svc.TransitionBooking,
	)

	bookings.GET("/:booking_id", svc.GetBooking)
	bookings.GET("", svc.GetMyBookings)

	r.POST("/healing/sweep",
		auth.AuthMiddleware(),
		middleware.RequirePermission(graph, shared_models.PermissionHealingTrigger),
		svc.SweepExpired,
	)
}
