package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// codeAlphabet matches the base36 upper-case codes handed out to users.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// NewCode returns a random code of n characters drawn uniformly from [0-9A-Z].
func NewCode(n int) (string, error) {
	// 252 is the largest multiple of 36 below 256; bytes at or above it are rejected
	// so every character is equally likely.
	const limit = 252

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
