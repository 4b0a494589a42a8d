package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"novachat/internal/security"
)

// RefreshTokens repositories operations against the refresh_tokens
// table. The plaintext token never persists; every lookup goes
// through its SHA-256 fingerprint (security.FingerprintRefreshToken).
type RefreshTokens struct{ pool *Pool }

func (p *Pool) RefreshTokens() *RefreshTokens { return &RefreshTokens{pool: p} }

// RefreshRecord is the {token_hash, user_id, expires_at} shape from
// §3, plus the login joined in for convenience at lookup time.
type RefreshRecord struct {
	UserID    string
	Login     string
	ExpiresAt time.Time
}

// Create inserts a new refresh-token row, fingerprinting token first.
func (r *RefreshTokens) Create(ctx context.Context, token, userID string, expiresAt time.Time) error {
	return r.pool.Execute(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
			security.FingerprintRefreshToken(token), userID, expiresAt)
		return err
	})
}

// Lookup resolves an unexpired refresh record by its fingerprint,
// joining the owning user's login. Returns ErrRecordNotFound if the
// fingerprint is unknown or has already expired.
func (r *RefreshTokens) Lookup(ctx context.Context, token string) (*RefreshRecord, error) {
	var rec RefreshRecord
	err := r.pool.Execute(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT rt.user_id, u.login, rt.expires_at
			 FROM refresh_tokens rt
			 JOIN users u ON u.user_id = rt.user_id
			 WHERE rt.token_hash = $1 AND rt.expires_at > now()`,
			security.FingerprintRefreshToken(token),
		).Scan(&rec.UserID, &rec.Login, &rec.ExpiresAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		var qe *QueryError
		if errors.As(err, &qe) && errors.Is(qe.Err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Rotate deletes the old token's row and inserts the new one inside a
// single transaction. §5 flags the reference implementation's
// non-atomic delete-then-insert as a race window; DESIGN.md's Open
// Question (a) resolves it by doing both statements under one
// Pool.Execute call instead of two.
func (r *RefreshTokens) Rotate(ctx context.Context, oldToken, newToken, userID string, newExpiresAt time.Time) error {
	return r.pool.Execute(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM refresh_tokens WHERE token_hash = $1`,
			security.FingerprintRefreshToken(oldToken)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
			security.FingerprintRefreshToken(newToken), userID, newExpiresAt)
		return err
	})
}

// DeleteByToken removes the row for token's fingerprint, used by
// logout. Deleting an unknown fingerprint is not an error.
func (r *RefreshTokens) DeleteByToken(ctx context.Context, token string) error {
	return r.pool.Execute(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM refresh_tokens WHERE token_hash = $1`,
			security.FingerprintRefreshToken(token))
		return err
	})
}

// SweepExpired deletes every row whose expiry has already passed,
// mirroring the schema's "scheduled function deletes rows where
// expires_at < now" (§6). Returns the number of rows removed.
func (r *RefreshTokens) SweepExpired(ctx context.Context) (int, error) {
	var removed int
	err := r.pool.Execute(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
		if err != nil {
			return err
		}
		removed = int(tag.RowsAffected())
		return nil
	})
	return removed, err
}
