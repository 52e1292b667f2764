package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/guards"
	"github.com/joy095/booking-core/logger"
)

// NonceHeader carries the caller's single-use request id.
const NonceHeader = "X-Request-Nonce"

// NonceGuard rejects replays of a request nonce while it is live. The nonce
// is required on the routes this middleware is attached to; duplicate
// submissions surface as conflicts before any store access happens.
func NonceGuard(store guards.NonceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce := c.GetHeader(NonceHeader)
		if nonce == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "NONCE_REQUIRED", "error": "X-Request-Nonce header is required."})
			return
		}

		owner := getClientIdentity(c)
		accepted, err := store.CheckAndStore(c.Request.Context(), nonce, owner)
		if err != nil {
			logger.ErrorLogger.Errorf("Nonce store failure: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"code": "NONCE_STORE_UNAVAILABLE", "error": "Could not verify request nonce."})
			return
		}
		if !accepted {
			logger.WarnLogger.Warnf("Duplicate nonce from %s", owner)
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"code": "DUPLICATE_NONCE", "error": "This request was already submitted."})
			return
		}

		c.Next()
	}
}
