package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/models"
	"github.com/nkiryanov/gophersession/internal/repository"
	"github.com/nkiryanov/gophersession/internal/service/auth/tokenmanager"
)

// Interface to create or verify user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Verify known hashedPassword against user provided password
	// Must be protected against timing attacks
	Verify(hashedPassword string, password string) (bool, error)
}

var DefaultHasher = BcryptHasher{}

// Compared against when user does not exist, so response time does not tell whether username is taken
const dummyPassword = "gophersession-dummy-password"

type Config struct {
	// Hasher to use during login
	Hasher PasswordHasher

	// Clock, wall clock if not set
	Now func() time.Time
}

// Auth service
// Issues, rotates and revokes token pairs
type AuthService struct {
	hasher    PasswordHasher
	dummyHash func() (string, error)
	now       func() time.Time

	tokens   *tokenmanager.TokenManager
	users    repository.UserRepo
	sessions repository.RefreshStore
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, users repository.UserRepo, sessions repository.RefreshStore) (*AuthService, error) {
	if tokens == nil || users == nil || sessions == nil {
		return nil, errors.New("token manager and repos must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		hasher: hasher,
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash(dummyPassword)
		}),
		now:      now,
		tokens:   tokens,
		users:    users,
		sessions: sessions,
	}, nil
}

// Login with username and password
// Unknown username and wrong password are indistinguishable: both are apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		if dummy, err := s.dummyHash(); err == nil {
			_, _ = s.hasher.Verify(dummy, password)
		}
		return pair, apperrors.ErrInvalidCredentials
	default:
		return pair, fmt.Errorf("error while getting user. Err: %w", err)
	}

	ok, err := s.hasher.Verify(user.HashedPassword, password)
	if err != nil {
		return pair, fmt.Errorf("error while verifying password of user %d. Err: %w", user.ID, err)
	}
	if !ok {
		return pair, apperrors.ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// Issue token pair for user and make its refresh token the only valid one
func (s *AuthService) startSession(ctx context.Context, user models.User) (models.TokenPair, error) {
	subject := user.Subject()

	pair, err := s.tokens.Issue(subject, s.now())
	if err != nil {
		return pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	err = s.sessions.Put(ctx, subject, pair.Refresh.Value, pair.Refresh.ExpiresAt)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("refresh token could not be saved. Err: %w", err)
	}

	return pair, nil
}

// Forget refresh token of access token owner
// Access token may be expired, but must be signed by us; otherwise nothing is revoked
// Error is returned only when store failed and is meant for logging, not for client
func (s *AuthService) Logout(ctx context.Context, access string) error {
	claims, err := s.tokens.Decode(access, models.TokenKindAccess, tokenmanager.WithTime(s.now()), tokenmanager.SkipExpiry())
	if err != nil || claims.Subject == "" {
		return nil
	}

	err = s.sessions.Remove(ctx, claims.Subject)
	if err != nil {
		return fmt.Errorf("refresh token of %s could not be removed. Err: %w", claims.Subject, err)
	}

	return nil
}

// Exchange access and refresh tokens for a new pair
// Refresh token is single use: presented token has to be the one on file, and stops being valid on success
func (s *AuthService) Refresh(ctx context.Context, access string, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	if refresh == "" || access == "" {
		return pair, apperrors.ErrMissingCredential
	}

	// Store is checked before any cryptographic work
	peeked, err := s.tokens.Peek(refresh)
	if err != nil {
		return pair, err
	}

	current, err := s.sessions.IsCurrent(ctx, peeked.Subject, refresh)
	if err != nil {
		return pair, fmt.Errorf("error while checking refresh token. Err: %w", err)
	}
	if !current {
		return pair, apperrors.ErrRefreshReplayed
	}

	now := s.now()

	rc, err := s.tokens.Decode(refresh, models.TokenKindRefresh, tokenmanager.WithTime(now))
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrTokenExpired):
		return pair, apperrors.ErrRefreshExpired
	default:
		return pair, fmt.Errorf("refresh token rejected. Err: %w", apperrors.ErrTokenMalformed)
	}

	ac, err := s.tokens.Decode(access, models.TokenKindAccess, tokenmanager.WithTime(now), tokenmanager.SkipExpiry())
	if err != nil {
		return pair, fmt.Errorf("access token rejected. Err: %w", apperrors.ErrTokenMalformed)
	}
	if ac.Subject != rc.Subject {
		return pair, fmt.Errorf("access and refresh tokens belong to different subjects: %w", apperrors.ErrTokenMalformed)
	}

	user, err := s.userBySubject(ctx, rc.Subject)
	if err != nil {
		return pair, err
	}

	pair, err = s.tokens.Issue(user.Subject(), now)
	if err != nil {
		return pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	// Another refresh with the same token may have won the race since IsCurrent
	err = s.sessions.Rotate(ctx, rc.Subject, refresh, pair.Refresh.Value, pair.Refresh.ExpiresAt)
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Resolve access token to user
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	if access == "" {
		return models.User{}, apperrors.ErrMissingCredential
	}

	claims, err := s.tokens.Decode(access, models.TokenKindAccess, tokenmanager.WithTime(s.now()))
	if err != nil {
		return models.User{}, err
	}

	return s.userBySubject(ctx, claims.Subject)
}

func (s *AuthService) userBySubject(ctx context.Context, subject string) (models.User, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return models.User{}, apperrors.ErrUnknownSubject
	}

	user, err := s.users.GetUserByID(ctx, id)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.ErrUnknownSubject
	default:
		return user, fmt.Errorf("error while getting user. Err: %w", err)
	}
}
