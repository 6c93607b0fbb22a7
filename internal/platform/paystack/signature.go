package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

// SignatureHeader is the header Paystack signs webhook deliveries with.
const SignatureHeader = "x-paystack-signature"

// ErrInvalidSignature indicates the webhook body was not signed with our
// secret. Deliveries failing this check must never be processed.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature recomputes the HMAC-SHA512 of the raw webhook body with the
// shared secret and compares it against the provided header value in constant
// time. An empty header fails closed.
func VerifySignature(rawBody []byte, signatureHeader, secret string) error {
	if signatureHeader == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the signature Paystack would send for the given body. Only
// used by tests and local tooling; the live secret never leaves the server.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
