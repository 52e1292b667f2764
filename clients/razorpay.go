package clients

import (
	razorpayutils "github.com/razorpay/razorpay-go/utils"
)

// PaymentSignatureVerifier checks that a payment webhook really came from the
// provider. The engine treats the gateway as an opaque verified signal, so
// signature verification is the only provider-specific behavior it needs.
type PaymentSignatureVerifier interface {
	VerifyWebhookSignature(signature, body string) bool
}

// RazorpayVerifier implements PaymentSignatureVerifier with the Razorpay SDK.
type RazorpayVerifier struct {
	webhookSecret string
}

// NewRazorpayVerifier creates a verifier for the given webhook secret.
func NewRazorpayVerifier(webhookSecret string) *RazorpayVerifier {
	return &RazorpayVerifier{webhookSecret: webhookSecret}
}

// VerifyWebhookSignature verifies the authenticity of a webhook signature
// against the shared secret.
func (r *RazorpayVerifier) VerifyWebhookSignature(signature, body string) bool {
	return razorpayutils.VerifyWebhookSignature(body, signature, r.webhookSecret)
}
