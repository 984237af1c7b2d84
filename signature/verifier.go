package signature

import "crypto/hmac"

// Verify checks whether the given signature matches the expected
// "sha256=<hex>" signature for the payload, secret, and timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyLegacy checks a signature in the legacy "t=<ts>,v1=<hex>" format.
func VerifyLegacy(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := SignLegacy(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}
