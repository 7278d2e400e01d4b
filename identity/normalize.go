package identity

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Normalize is the lookup form of user names, emails and role names.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewSecurityStamp returns a random stamp. Changing the stamp invalidates
// every outstanding user token.
func NewSecurityStamp() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// RandomTokenString returns a url safe random token of n bytes.
func RandomTokenString(n int) string {
	return randomHex(n)
}
