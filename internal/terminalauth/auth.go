package terminalauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign produces the request envelope signature: HMAC-SHA256 over
// terminalID||timestamp keyed with the terminal's API secret. Verification on
// the backend is deterministic; replay rejection is the backend's job.
func Sign(terminalID string, timestampMillis int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%s%d", terminalID, timestampMillis)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an envelope signature in constant time
func Verify(terminalID string, timestampMillis int64, secret, signature string) bool {
	expected := Sign(terminalID, timestampMillis, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HashCard converts a raw card identifier into the opaque lookup key stored
// in the roster. Deterministic salted SHA-256: stable across calls, but a
// placeholder — do not assume real cryptographic strength here.
func HashCard(raw, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + raw))
	return hex.EncodeToString(sum[:])
}

// HashPin hashes a user PIN the same way as card identifiers
func HashPin(pin, salt string) string {
	return HashCard("pin:"+pin, salt)
}
