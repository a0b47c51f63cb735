package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hash bytes kept for display.
const fingerprintLen = 10

// Fingerprint returns a short stable identifier for key material, used in
// logs and the CLI so operators can compare keys without ever printing the
// key bytes themselves.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:fingerprintLen])
}
