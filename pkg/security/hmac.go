package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Sealer produces and checks the tamper-evidence MAC recorded when a
// document becomes fully signed. It holds no state beyond the process
// secret, which must never be logged.
type Sealer struct {
	secret []byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("security: HMAC secret is required")
	}
	return &Sealer{secret: []byte(secret)}, nil
}

// Sign returns the hex-encoded HMAC-SHA256 of hash under the process secret.
func (s *Sealer) Sign(hash string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether mac was produced by Sign(hash). The comparison
// is constant time.
func (s *Sealer) Verify(hash, mac string) bool {
	given, err := hex.DecodeString(mac)
	if err != nil {
		return false
	}
	want := hmac.New(sha256.New, s.secret)
	want.Write([]byte(hash))
	return hmac.Equal(want.Sum(nil), given)
}
