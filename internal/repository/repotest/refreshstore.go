// Package repotest holds behaviour checks every repository backend has to pass
package repotest

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/repository"
)

// Every call uses fresh random subject, so the same store may be shared by all subtests
func RefreshStore(t *testing.T, store repository.RefreshStore) {
	t.Helper()

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	newSubject := func() string { return uuid.NewString() }

	t.Run("put then is current", func(t *testing.T) {
		subject := newSubject()

		err := store.Put(t.Context(), subject, "token-1", expiresAt)
		require.NoError(t, err)

		ok, err := store.IsCurrent(t.Context(), subject, "token-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.IsCurrent(t.Context(), subject, "token-2")
		require.NoError(t, err)
		assert.False(t, ok, "only exact token is current")
	})

	t.Run("unknown subject is not current", func(t *testing.T) {
		ok, err := store.IsCurrent(t.Context(), newSubject(), "token-1")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put replaces previous token", func(t *testing.T) {
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))
		require.NoError(t, store.Put(t.Context(), subject, "token-2", expiresAt))

		ok, err := store.IsCurrent(t.Context(), subject, "token-1")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.IsCurrent(t.Context(), subject, "token-2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		first, second := newSubject(), newSubject()
		require.NoError(t, store.Put(t.Context(), first, "token-1", expiresAt))

		ok, err := store.IsCurrent(t.Context(), second, "token-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))

		err := store.Remove(t.Context(), subject)
		require.NoError(t, err)

		ok, err := store.IsCurrent(t.Context(), subject, "token-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove absent is ok", func(t *testing.T) {
		err := store.Remove(t.Context(), newSubject())
		require.NoError(t, err)

		err = store.Remove(t.Context(), "")
		require.NoError(t, err)
	})

	t.Run("rotate", func(t *testing.T) {
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))

		err := store.Rotate(t.Context(), subject, "token-1", "token-2", expiresAt)
		require.NoError(t, err)

		ok, err := store.IsCurrent(t.Context(), subject, "token-1")
		require.NoError(t, err)
		assert.False(t, ok, "rotated token must not be current")

		ok, err = store.IsCurrent(t.Context(), subject, "token-2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rotate stale token", func(t *testing.T) {
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))
		require.NoError(t, store.Rotate(t.Context(), subject, "token-1", "token-2", expiresAt))

		err := store.Rotate(t.Context(), subject, "token-1", "token-3", expiresAt)
		require.ErrorIs(t, err, apperrors.ErrRefreshReplayed)

		ok, err := store.IsCurrent(t.Context(), subject, "token-2")
		require.NoError(t, err)
		assert.True(t, ok, "failed rotation must keep current token")
	})

	t.Run("rotate removed subject", func(t *testing.T) {
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))
		require.NoError(t, store.Remove(t.Context(), subject))

		err := store.Rotate(t.Context(), subject, "token-1", "token-2", expiresAt)
		require.ErrorIs(t, err, apperrors.ErrRefreshReplayed)

		ok, err := store.IsCurrent(t.Context(), subject, "token-2")
		require.NoError(t, err)
		assert.False(t, ok, "rotation must not resurrect removed entry")
	})

	t.Run("concurrent rotate has one winner", func(t *testing.T) {
		const workers = 10
		subject := newSubject()
		require.NoError(t, store.Put(t.Context(), subject, "token-1", expiresAt))

		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = store.Rotate(t.Context(), subject, "token-1", "next-"+uuid.NewString(), expiresAt)
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, apperrors.ErrRefreshReplayed)
		}
		require.Equal(t, 1, succeeded, "exactly one rotation should win")
	})
}
