package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// Verify checks a base64 HMAC-SHA256 signature over the raw body using the shared secret.
// The body must be the bytes as received; a missing signature or secret never verifies.
func Verify(body []byte, provided, secret string) bool {
	return VerifyKey(body, provided, []byte(secret))
}

// VerifyKey is Verify with the key already decoded.
func VerifyKey(body []byte, provided string, key []byte) bool {
	if provided == "" || len(key) == 0 {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign returns the base64 HMAC-SHA256 of body, as the order source would send it.
func Sign(secret string, body []byte) string {
	return SignKey([]byte(secret), body)
}

// SignKey is Sign with the key already decoded.
func SignKey(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
