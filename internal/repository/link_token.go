// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vinovest/sqlx"
)

// CreateRelayLinkToken stores a hashed relay deep-link token.
func (r *Repository) CreateRelayLinkToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relay_link_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash, expiresAt)
	return err
}

// ConsumeRelayLinkToken matches a hashed token against the pending-link
// records and deletes it, returning the owning user. ErrNotFound covers both
// unknown and expired tokens.
func (r *Repository) ConsumeRelayLinkToken(ctx context.Context, tokenHash string, now time.Time) (int64, error) {
	var userID int64
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			ID     int64 `db:"id"`
			UserID int64 `db:"user_id"`
		}
		err := tx.GetContext(ctx, &row,
			`SELECT id, user_id FROM relay_link_tokens
			 WHERE token_hash = ? AND expires_at > ?`,
			tokenHash, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relay_link_tokens WHERE id = ?`, row.ID); err != nil {
			return err
		}
		userID = row.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// DeleteExpiredRelayLinkTokens removes tokens past their expiry.
func (r *Repository) DeleteExpiredRelayLinkTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM relay_link_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
