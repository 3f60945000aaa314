package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt length is 60 letters as far as i know")
		require.Equal(t, "$2a$", got[:4], "bcrypt has should have prefix '$2a$'")
	})

	t.Run("hash is salted", func(t *testing.T) {
		first, err := h.Hash("password")
		require.NoError(t, err)
		second, err := h.Hash("password")
		require.NoError(t, err)

		require.NotEqual(t, first, second)
	})

	t.Run("default cost", func(t *testing.T) {
		got, err := BcryptHasher{}.Hash("password")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(got))
		require.NoError(t, err)
		require.Equal(t, bcrypt.DefaultCost, cost)
	})

	t.Run("verify password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "password")

		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("verify wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "wrong")

		require.NoError(t, err, "mismatch is not an error")
		require.False(t, ok)
	})

	t.Run("long passwords differ after 72 bytes", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		hash, err := h.Hash(long + "1")
		require.NoError(t, err)

		ok, err := h.Verify(hash, long+"2")

		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("broken hash", func(t *testing.T) {
		ok, err := h.Verify("not-a-bcrypt-hash", "password")

		require.Error(t, err)
		require.False(t, ok)
	})
}
