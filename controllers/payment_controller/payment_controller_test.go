package payment_controller

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// staticVerifier stands in for the provider SDK so the handler's own checks
// can be exercised without a real webhook secret.
type staticVerifier struct {
	ok bool
}

func (v staticVerifier) VerifyWebhookSignature(signature, body string) bool {
	return v.ok
}

func webhookRouter(verifier staticVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := NewPaymentService(nil, nil, verifier, nil)
	r.POST("/payments/webhook", svc.HandleWebhook)
	return r
}

func postWebhook(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, "sig")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r := webhookRouter(staticVerifier{ok: false})

	w := postWebhook(r, `{"event":"payment.captured"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	r := webhookRouter(staticVerifier{ok: true})

	w := postWebhook(r, `{"event":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestWebhookIgnoresUnhandledEvents(t *testing.T) {
	r := webhookRouter(staticVerifier{ok: true})

	for _, event := range []string{"order.paid", "refund.processed", "payment.authorized"} {
		w := postWebhook(r, `{"event":"`+event+`"}`)

		assert.Equal(t, http.StatusOK, w.Code, event)
		assert.Contains(t, w.Body.String(), "ignored")
	}
}

func TestWebhookRequiresOrderID(t *testing.T) {
	r := webhookRouter(staticVerifier{ok: true})

	w := postWebhook(r, `{"event":"payment.captured","payload":{"payment":{"entity":{"amount":100}}}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Order id missing")
}
