package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/repository"
)

type RefreshStore struct {
	DB DBTX
}

const putRefreshSession = `-- name: PutRefreshSession
INSERT INTO refresh_sessions (subject, token_hash, expires_at, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (subject) DO UPDATE
SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, updated_at = NOW()
`

func (r *RefreshStore) Put(ctx context.Context, subject string, token string, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx, putRefreshSession, subject, repository.Fingerprint(token), expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const removeRefreshSession = `-- name: RemoveRefreshSession
DELETE FROM refresh_sessions
WHERE subject = $1
`

func (r *RefreshStore) Remove(ctx context.Context, subject string) error {
	_, err := r.DB.Exec(ctx, removeRefreshSession, subject)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const isCurrentRefreshSession = `-- name: IsCurrentRefreshSession
SELECT EXISTS (
    SELECT 1 FROM refresh_sessions
    WHERE subject = $1 AND token_hash = $2
)
`

func (r *RefreshStore) IsCurrent(ctx context.Context, subject string, token string) (bool, error) {
	rows, _ := r.DB.Query(ctx, isCurrentRefreshSession, subject, repository.Fingerprint(token))
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Row lock taken by UPDATE serializes concurrent rotations of the same subject
const rotateRefreshSession = `-- name: RotateRefreshSession
UPDATE refresh_sessions
SET token_hash = $3, expires_at = $4, updated_at = NOW()
WHERE subject = $1 AND token_hash = $2
`

func (r *RefreshStore) Rotate(ctx context.Context, subject string, current string, next string, expiresAt time.Time) error {
	tag, err := r.DB.Exec(ctx, rotateRefreshSession, subject, repository.Fingerprint(current), repository.Fingerprint(next), expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrRefreshReplayed
	}
	return nil
}

const deleteExpiredRefreshSessions = `-- name: DeleteExpiredRefreshSessions
DELETE FROM refresh_sessions
WHERE expires_at < $1
`

// Delete sessions whose token expired before the given time
// Returns number of deleted rows
func (r *RefreshStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredRefreshSessions, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
