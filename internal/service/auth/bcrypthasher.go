package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt password hasher
// Will be used as default one if user not provide it's own
//
// Password is pre-hashed with SHA-256 so passwords longer than 72 bytes are not truncated by bcrypt
type BcryptHasher struct {
	// bcrypt cost; library default is used when zero
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	if err != nil {
		return "", fmt.Errorf("error while hashing password. Err: %w", err)
	}
	return string(hash), nil
}

// Verify returns true if password matches the hash
// Mismatch is not an error; error returned only when the stored hash itself is broken
func (h BcryptHasher) Verify(hashedPassword string, password string) (bool, error) {
	sum := sha256.Sum256([]byte(password))
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("stored password hash is broken. Err: %w", err)
	}
}
