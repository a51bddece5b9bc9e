package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks a hex-encoded HMAC-SHA256 signature against the
// exact raw request bytes. It never returns an error: a missing or empty
// signature, malformed hex, an unconfigured secret, or a mismatch all
// report false. Comparison is constant time.
func VerifySignature(rawBody []byte, providedHex, secret string) bool {
	if secret == "" || providedHex == "" {
		return false
	}
	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided)
}

// SignBody computes the hex HMAC-SHA256 signature a caller must send in
// X-Signature for the given body and secret.
func SignBody(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
