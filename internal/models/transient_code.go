// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TransientCode stores a hashed single-use out-of-band code. The plaintext
// is never persisted; only a SHA256 hash of it.
type TransientCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Method    Method     `db:"method" json:"method"`
	CodeHash  string     `db:"code_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	IsUsed    bool       `db:"is_used" json:"is_used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	IssuingIP string     `db:"issuing_ip" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ValidAt reports whether the code is still spendable at t.
func (c *TransientCode) ValidAt(t time.Time) bool {
	return !c.IsUsed && t.Before(c.ExpiresAt)
}
