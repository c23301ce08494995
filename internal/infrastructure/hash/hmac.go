// Package hash implements the keyed password hash.
package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMAC hashes passwords with HMAC-SHA256 under a server secret.
type HMAC struct {
	secret []byte
}

func NewHMAC(secret string) *HMAC {
	return &HMAC{secret: []byte(secret)}
}

func (h *HMAC) Hash(password string) string {
	m := hmac.New(sha256.New, h.secret)
	m.Write([]byte(password))
	return hex.EncodeToString(m.Sum(nil))
}

// Matches compares in constant time.
func (h *HMAC) Matches(password, hashed string) bool {
	return hmac.Equal([]byte(h.Hash(password)), []byte(hashed))
}
