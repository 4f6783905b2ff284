package internal

import (
	"crypto/rand"
	"errors"
)

// SaltSize is the length of a fingerprint salt.
const SaltSize = 16

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid random length")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewSalt returns a fresh per-session fingerprint salt.
func NewSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}
