package secret

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLength = 12

// Fingerprint returns a short one-way hash of a token that is safe to log.
func Fingerprint(token Plaintext) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
