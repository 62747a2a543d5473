package utils

import (
	"crypto/rand"
	"crypto/subtle"
)

func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// ConstantTimeEquals compares two secrets without leaking the position of the
// first mismatch through timing.
func ConstantTimeEquals(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
