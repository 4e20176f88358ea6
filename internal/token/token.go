package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Generate returns a 32-byte cryptographically random token
// encoded as base64url (no padding).
func Generate() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("token: crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
