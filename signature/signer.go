// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// Two header formats coexist for historical reasons: tenant webhook
// subscriptions receive "sha256=<hex>", app installations receive the legacy
// "t=<timestamp>,v1=<hex>". The signed content is identical in both.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign generates the HMAC-SHA256 signature for the given payload.
// The content to sign is "{timestamp}.{payload}".
// Returns a signature in the format "sha256=<hex>".
func Sign(payload []byte, secret string, timestamp int64) string {
	return "sha256=" + digest(payload, secret, timestamp)
}

// SignLegacy generates the same HMAC-SHA256 signature in the legacy app
// delivery format "t=<timestamp>,v1=<hex>". The embedded timestamp lets
// receivers bound their replay window from the header alone.
func SignLegacy(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, digest(payload, secret, timestamp))
}

func digest(payload []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
