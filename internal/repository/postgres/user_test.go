package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophersession/internal/repository"
	"github.com/nkiryanov/gophersession/internal/repository/repotest"
	"github.com/nkiryanov/gophersession/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Every subtest works in its own transaction rolled back at the end
	repotest.UserRepo(t, func(t *testing.T) repository.UserRepo {
		tx, err := pg.Pool.Begin(t.Context())
		require.NoError(t, err)
		t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

		return &UserRepo{DB: tx}
	})
}

func Test_StorageInTx(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("commit on success", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewStorage(tx)

			err := s.InTx(t.Context(), func(s repository.Storage) error {
				_, err := s.User().CreateUser(t.Context(), repository.CreateUserParams{Username: "committed", PasswordHash: "hash"})
				return err
			})
			require.NoError(t, err)

			_, err = s.User().GetUserByUsername(t.Context(), "committed")
			require.NoError(t, err)
		})
	})

	t.Run("rollback on error", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewStorage(tx)

			err := s.InTx(t.Context(), func(s repository.Storage) error {
				_, err := s.User().CreateUser(t.Context(), repository.CreateUserParams{Username: "rolledback", PasswordHash: "hash"})
				require.NoError(t, err)
				// Second one fails: username is taken
				_, err = s.User().CreateUser(t.Context(), repository.CreateUserParams{Username: "rolledback", PasswordHash: "hash"})
				return err
			})
			require.Error(t, err)

			_, err = s.User().GetUserByUsername(t.Context(), "rolledback")
			require.Error(t, err, "user must not be saved")
		})
	})
}
