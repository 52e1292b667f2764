package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/controllers/payment_controller"
	middleware "github.com/joy095/booking-core/middlewares"
)

// RegisterPaymentRoutes wires the provider webhook. The webhook authenticates
// by signature, not bearer token, so it skips the auth chain; a generous edge
// rate limit shields the signature check from floods.
func RegisterPaymentRoutes(r *gin.Engine, svc *payment_controller.PaymentService) {
	r.POST("/payments/webhook",
		middleware.NewRateLimiter("120-1m", "paymentWebhook"),
		svc.HandleWebhook,
	)
}
