// Package idgen provides cryptographically random ID generation.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Transaction generates a decision transaction ID: "TXN-" followed by
// 12 uppercase hex chars (6 random bytes).
func Transaction() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return "TXN-" + strings.ToUpper(hex.EncodeToString(b))
}
