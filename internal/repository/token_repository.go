package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/contacts-api/internal/model"
)

// TokenRepo persists refresh-token rows (single 'token_hash' column, the
// plaintext secret never reaches this layer).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "id,user_id,token_hash,created_at,expired_at,revoked_at,ip_address,user_agent"

func scanToken(row *sql.Row) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiredAt,
		&revokedAt, &t.IPAddress, &t.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, err
}

// StoreRefresh inserts a refresh token hash row together with its audit
// metadata. The unique index on token_hash serializes concurrent inserts
// of the same secret.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiredAt time.Time, ip, userAgent *string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expired_at, ip_address, user_agent) VALUES (?,?,?,?,?)",
		userID, tokenHash, expiredAt, ip, userAgent)
	return err
}

// GetActive returns the row for tokenHash only when it is still usable:
// not revoked and expiring strictly after now. A row whose expired_at
// equals now is already dead and reported as ErrNotFound.
func (r *TokenRepo) GetActive(ctx context.Context, tokenHash string, now time.Time) (model.RefreshToken, error) {
	return scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? AND revoked_at IS NULL AND expired_at > ? LIMIT 1",
		tokenHash, now))
}

// GetByHash returns the row for tokenHash regardless of state. Logout
// uses this so an expired-but-unrevoked token can still be revoked.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	return scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", tokenHash))
}

// Revoke marks a token as revoked at the given instant. The revoked_at
// guard makes the operation idempotent: a second call matches no row and
// the original revocation time never moves.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now, tokenHash)
	return err
}

// RevokeAllForUser revokes every active token a user owns.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	return err
}

// DeleteExpired hard-deletes rows that are already semantically dead:
// past their expiry, or revoked and past expiry by more than the grace
// period. It returns the number of rows removed so the reaper can log it.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expired_at < ? OR (revoked_at IS NOT NULL AND expired_at < ?)",
		now, now.Add(-grace))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
