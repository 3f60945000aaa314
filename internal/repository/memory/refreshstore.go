package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/repository"
)

type refreshEntry struct {
	fingerprint string
	expiresAt   time.Time
}

// Whole store is guarded by one mutex, so Rotate compare and swap can't interleave
type RefreshStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
}

func NewRefreshStore() *RefreshStore {
	return &RefreshStore{entries: make(map[string]refreshEntry)}
}

func (s *RefreshStore) Put(ctx context.Context, subject string, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[subject] = refreshEntry{fingerprint: repository.Fingerprint(token), expiresAt: expiresAt}
	return nil
}

func (s *RefreshStore) Remove(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, subject)
	return nil
}

func (s *RefreshStore) IsCurrent(ctx context.Context, subject string, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.matches(subject, token), nil
}

func (s *RefreshStore) Rotate(ctx context.Context, subject string, current string, next string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.matches(subject, current) {
		return apperrors.ErrRefreshReplayed
	}

	s.entries[subject] = refreshEntry{fingerprint: repository.Fingerprint(next), expiresAt: expiresAt}
	return nil
}

// Must be called with mu held
func (s *RefreshStore) matches(subject string, token string) bool {
	entry, ok := s.entries[subject]
	if !ok {
		return false
	}
	fp := repository.Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(entry.fingerprint), []byte(fp)) == 1
}
