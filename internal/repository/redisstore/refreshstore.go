package redisstore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/repository"
)

const (
	defaultPrefix    = "gophersession:rt:"
	defaultRetention = 24 * time.Hour
)

// Replace value only if it still equals the expected one
// KEYS[1] key; ARGV[1] expected fingerprint; ARGV[2] next fingerprint; ARGV[3] ttl in milliseconds
const rotateScript = `
local current = redis.call("GET", KEYS[1])
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

type Config struct {
	// Key namespace
	Prefix string

	// How long entry outlives the token it holds
	// Expired token still found in the store reported as expired and not as replayed
	Retention time.Duration
}

type RefreshStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRefreshStore(client redis.UniversalClient, cfg Config) *RefreshStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	return &RefreshStore{
		client:    client,
		prefix:    cfg.Prefix,
		retention: cfg.Retention,
		now:       time.Now,
	}
}

func (s *RefreshStore) key(subject string) string {
	return s.prefix + subject
}

func (s *RefreshStore) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now()) + s.retention
	return max(ttl, time.Millisecond)
}

func (s *RefreshStore) Put(ctx context.Context, subject string, token string, expiresAt time.Time) error {
	err := s.client.Set(ctx, s.key(subject), repository.Fingerprint(token), s.ttl(expiresAt)).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RefreshStore) Remove(ctx context.Context, subject string) error {
	err := s.client.Del(ctx, s.key(subject)).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RefreshStore) IsCurrent(ctx context.Context, subject string, token string) (bool, error) {
	fp, err := s.client.Get(ctx, s.key(subject)).Result()

	switch {
	case err == nil:
		return subtle.ConstantTimeCompare([]byte(fp), []byte(repository.Fingerprint(token))) == 1, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("redis error: %w", err)
	}
}

func (s *RefreshStore) Rotate(ctx context.Context, subject string, current string, next string, expiresAt time.Time) error {
	swapped, err := rotateLua.Run(
		ctx,
		s.client,
		[]string{s.key(subject)},
		repository.Fingerprint(current),
		repository.Fingerprint(next),
		s.ttl(expiresAt).Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	if swapped != 1 {
		return apperrors.ErrRefreshReplayed
	}
	return nil
}
