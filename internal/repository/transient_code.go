// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/twofactor/internal/models"
)

// CreateTransientCode stores a hashed out-of-band code.
func (r *Repository) CreateTransientCode(ctx context.Context, userID int64, method models.Method, codeHash string, expiresAt time.Time, issuingIP string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transient_codes (user_id, method, code_hash, expires_at, issuing_ip)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, method, codeHash, expiresAt, issuingIP)
	return err
}

// InvalidateOutstandingCodes marks all still-unused codes for a user+method
// as used, so only the most recently issued code stays live.
func (r *Repository) InvalidateOutstandingCodes(ctx context.Context, userID int64, method models.Method, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transient_codes SET is_used = 1, used_at = ?
		 WHERE user_id = ? AND method = ? AND is_used = 0`,
		at, userID, method)
	return err
}

// ConsumeTransientCode atomically spends the newest valid code matching the
// hash. The check-and-mark is a single conditional UPDATE, so of any number
// of concurrent submissions of the same code exactly one observes a row
// change.
func (r *Repository) ConsumeTransientCode(ctx context.Context, userID int64, method models.Method, codeHash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transient_codes SET is_used = 1, used_at = ?
		 WHERE id = (
		     SELECT id FROM transient_codes
		     WHERE user_id = ? AND method = ? AND code_hash = ?
		       AND is_used = 0 AND expires_at > ?
		     ORDER BY created_at DESC, id DESC LIMIT 1
		 )`,
		now, userID, method, codeHash, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountOutstandingCodes returns how many unused, unexpired codes exist for a
// user across all methods.
func (r *Repository) CountOutstandingCodes(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM transient_codes
		 WHERE user_id = ? AND is_used = 0 AND expires_at > ?`,
		userID, now)
	return count, err
}

// DeleteExpiredTransientCodes removes codes past their expiry. Maintenance
// only; validity checks never depend on this running.
func (r *Repository) DeleteExpiredTransientCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transient_codes WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
