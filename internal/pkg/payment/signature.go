package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix is the scheme tag the provider puts in front of the hex
// HMAC in its signature header.
const SignaturePrefix = "sha256="

// Sign computes the signature header value for a payload. Used by tests and
// by the provider simulator in development.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" signature header against the raw
// payload using constant-time comparison.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if !strings.HasPrefix(sig, SignaturePrefix) {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(strings.TrimPrefix(sig, SignaturePrefix)))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
