// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/twofactor/internal/models"
)

// ErrTooManyEnabled signals a violated invariant: more than one enabled
// method was found for a user. Never repaired automatically.
var ErrTooManyEnabled = errors.New("multiple enabled two-factor methods for user")

// GetEnabledMethod returns the single enabled method for a user, ErrNotFound
// if none, or ErrTooManyEnabled if the at-most-one invariant is violated.
func (r *Repository) GetEnabledMethod(ctx context.Context, userID int64) (*models.TwoFactorMethod, error) {
	var methods []models.TwoFactorMethod
	err := r.db.SelectContext(ctx, &methods,
		`SELECT * FROM two_factor_methods WHERE user_id = ? AND is_enabled = 1`, userID)
	if err != nil {
		return nil, err
	}
	switch len(methods) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &methods[0], nil
	default:
		return nil, ErrTooManyEnabled
	}
}

// GetPendingMethod returns the most recent in-progress enrollment for a user.
func (r *Repository) GetPendingMethod(ctx context.Context, userID int64) (*models.TwoFactorMethod, error) {
	var method models.TwoFactorMethod
	err := r.db.GetContext(ctx, &method,
		`SELECT * FROM two_factor_methods
		 WHERE user_id = ? AND is_enabled = 0 AND verified_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &method, nil
}

// ReplacePendingMethod tears down every existing method, transient code and
// link token for the user and inserts a fresh pending record. Runs in one
// transaction so an enable racing a disable cannot leave partial state.
func (r *Repository) ReplacePendingMethod(ctx context.Context, userID int64, method models.Method, secret string) (*models.TwoFactorMethod, error) {
	var id int64
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := purgeUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO two_factor_methods (user_id, method, secret) VALUES (?, ?, ?)`,
			userID, method, secret)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.getMethodByID(ctx, id)
}

// MarkMethodEnabled flips a pending record to enabled. The update is
// conditional on the record still being pending; zero rows affected means
// the enrollment was completed or torn down concurrently.
func (r *Repository) MarkMethodEnabled(ctx context.Context, methodID, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_methods
		 SET is_enabled = 1, verified_at = ?, last_used_at = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND is_enabled = 0`,
		at, at, at, methodID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMethodChannelAddress attaches a relay channel to a pending relay
// enrollment that has no channel yet.
func (r *Repository) SetMethodChannelAddress(ctx context.Context, methodID int64, channelAddress string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_methods
		 SET channel_address = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND is_enabled = 0 AND channel_address = ''`,
		channelAddress, methodID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchMethodLastUsed stamps last_used_at after a successful verification.
func (r *Repository) TouchMethodLastUsed(ctx context.Context, methodID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_methods SET last_used_at = ?, updated_at = ? WHERE id = ?`,
		at, at, methodID)
	return err
}

// DisableTwoFactor removes all two-factor state for a user. Returns
// ErrNotFound when no enabled method exists; the caller reports that as an
// explicit "not enabled" condition rather than silent success.
func (r *Repository) DisableTwoFactor(ctx context.Context, userID int64) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var enabled int64
		err := tx.GetContext(ctx, &enabled,
			`SELECT COUNT(*) FROM two_factor_methods WHERE user_id = ? AND is_enabled = 1`, userID)
		if err != nil {
			return err
		}
		if enabled == 0 {
			return ErrNotFound
		}
		return purgeUser(ctx, tx, userID)
	})
}

func (r *Repository) getMethodByID(ctx context.Context, id int64) (*models.TwoFactorMethod, error) {
	var method models.TwoFactorMethod
	if err := r.db.GetContext(ctx, &method, `SELECT * FROM two_factor_methods WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &method, nil
}

// purgeUser deletes methods, transient codes and link tokens for a user
// inside an existing transaction.
func purgeUser(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	for _, q := range []string{
		`DELETE FROM transient_codes WHERE user_id = ?`,
		`DELETE FROM relay_link_tokens WHERE user_id = ?`,
		`DELETE FROM two_factor_methods WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return err
		}
	}
	return nil
}
