package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// verifySignature verifies a webhook signature using HMAC.
func verifySignature(body, signature, secret, algorithm string) bool {
	var expected string

	switch algorithm {
	case "sha256":
		expected = computeHMACSHA256(body, secret)
	case "sha1":
		expected = computeHMACSHA1(body, secret)
	default:
		return false
	}

	// Timing-safe comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

func computeHMACSHA256(body, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(body))
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(h.Sum(nil)))
}

func computeHMACSHA1(body, secret string) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write([]byte(body))
	return fmt.Sprintf("sha1=%s", hex.EncodeToString(h.Sum(nil)))
}
