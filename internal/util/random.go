package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewRedemptionCode returns a 16 character upper-case hex code.
func NewRedemptionCode() (string, error) {
	s, err := RandomHex(8)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}
