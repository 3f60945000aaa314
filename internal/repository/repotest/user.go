package repotest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/repository"
)

// Usernames are random, so the same repo may be shared by all subtests
func UserRepo(t *testing.T, newRepo func(t *testing.T) repository.UserRepo) {
	t.Helper()

	newUsername := func() string { return "user-" + uuid.NewString()[:8] }

	t.Run("create user ok", func(t *testing.T) {
		r := newRepo(t)
		username := newUsername()
		email := "user@example.com"

		user, err := r.CreateUser(t.Context(), repository.CreateUserParams{
			Username:     username,
			Email:        &email,
			PasswordHash: "hashedpassword123",
		})

		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, username, user.Username)
		assert.Equal(t, "hashedpassword123", user.HashedPassword)
		require.NotNil(t, user.Email)
		assert.Equal(t, email, *user.Email)
		assert.WithinDuration(t, time.Now(), user.CreatedAt, 5*time.Second, "CreatedAt should be recent")
	})

	t.Run("create user without email", func(t *testing.T) {
		r := newRepo(t)

		user, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: newUsername(), PasswordHash: "hash"})

		require.NoError(t, err)
		assert.Nil(t, user.Email)
	})

	t.Run("create duplicate user", func(t *testing.T) {
		r := newRepo(t)
		username := newUsername()
		_, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: username, PasswordHash: "hash"})
		require.NoError(t, err)

		_, err = r.CreateUser(t.Context(), repository.CreateUserParams{Username: username, PasswordHash: "other"})

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("get user by id ok", func(t *testing.T) {
		r := newRepo(t)
		created, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: newUsername(), PasswordHash: "hash"})
		require.NoError(t, err)

		got, err := r.GetUserByID(t.Context(), created.ID)

		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Username, got.Username)
		assert.Equal(t, created.HashedPassword, got.HashedPassword)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get user by username ok", func(t *testing.T) {
		r := newRepo(t)
		created, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: newUsername(), PasswordHash: "hash"})
		require.NoError(t, err)

		got, err := r.GetUserByUsername(t.Context(), created.Username)

		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("get user not found", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.GetUserByID(t.Context(), -1)
		require.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")

		_, err = r.GetUserByUsername(t.Context(), newUsername())
		require.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
	})
}
