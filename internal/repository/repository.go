package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nkiryanov/gophersession/internal/models"
)

type CreateUserParams struct {
	Username     string
	Email        *string
	PasswordHash string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Refresh token store
// Holds at most one refresh token per subject: the only one that may be exchanged for a new pair
type RefreshStore interface {
	// Save token for subject replacing any previous one
	Put(ctx context.Context, subject string, token string, expiresAt time.Time) error

	// Forget subject token. Not an error if there is nothing to forget
	Remove(ctx context.Context, subject string) error

	// Report whether token is exactly the one on file for the subject
	IsCurrent(ctx context.Context, subject string, token string) (bool, error)

	// Replace current token with next atomically
	// If current is not on file anymore (rotated or removed) must return apperrors.ErrRefreshReplayed
	Rotate(ctx context.Context, subject string, current string, next string, expiresAt time.Time) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshStore
}

// Fingerprint is what persistent stores keep instead of the raw token
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
