package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAlgorithm identifies the digest/seal pair recorded on every
// document hash row.
const HashAlgorithm = "SHA-256/HMAC-SHA256"

// Checksum returns the lower-case hex SHA-256 digest of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
