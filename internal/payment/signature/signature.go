// Package signature implements the gateway's HMAC verification schemes:
// payment confirmations sign "orderID|paymentID", webhooks sign the exact
// raw body bytes. Both are HMAC-SHA256 hex digests compared in constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks a client-submitted payment confirmation.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	expected := digest([]byte(orderID+"|"+paymentID), secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// VerifyWebhookSignature checks an inbound webhook body against its
// signature header.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if len(body) == 0 || signature == "" || secret == "" {
		return false
	}
	expected := digest(body, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Sign produces the hex HMAC-SHA256 digest of payload. Exposed for tests and
// for building outbound sandbox requests.
func Sign(payload []byte, secret string) string {
	return digest(payload, secret)
}

func digest(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
