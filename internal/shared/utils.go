// Package shared provides small helpers and sentinel errors used across
// the project.
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// MakeRandBase64String generates an opaque random token of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them with standard base64, so the final string is roughly 4/3 of
// size characters long.
//
// It returns an error if the random number generator fails.
func MakeRandBase64String(size int) (string, error) {

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// MakeRandHexString generates a random hexadecimal string of the given size.
// Each random byte expands to two hex characters, so the final string length
// is twice the size.
func MakeRandHexString(size int) (string, error) {

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
