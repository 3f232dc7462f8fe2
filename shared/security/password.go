package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/matthewhartstonge/argon2"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// HashPassword hashes a plain-text password with argon2id and returns the
// encoded form suitable for storage.
func HashPassword(password string) (string, error) {
	cfg := argon2.DefaultConfig()

	encoded, err := cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(encoded), nil
}

// VerifyPassword reports whether the plain-text password matches the encoded
// hash.
func VerifyPassword(password, encodedHash string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}

	return ok, nil
}

// RandomPassword generates a high-entropy random password of the given
// length. Used for provider-linked accounts whose local credential exists
// only to satisfy storage constraints and is never communicated to anyone.
func RandomPassword(length int) (string, error) {
	password := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))

	for i := range password {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = passwordAlphabet[n.Int64()]
	}

	return string(password), nil
}
