// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Method identifies a second-factor delivery mechanism.
type Method string

const (
	MethodTOTP  Method = "totp"
	MethodEmail Method = "email"
	MethodRelay Method = "relay"
)

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodTOTP, MethodEmail, MethodRelay:
		return true
	}
	return false
}

// OutOfBand reports whether codes for m are delivered over a side channel
// rather than computed locally by the user's device.
func (m Method) OutOfBand() bool {
	return m == MethodEmail || m == MethodRelay
}

// TwoFactorMethod is one enrollment attempt for a user. A row with
// is_enabled = false and verified_at = NULL is a pending setup; at most one
// row per user may be enabled (enforced by a partial unique index).
type TwoFactorMethod struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Method         Method     `db:"method" json:"method"`
	Secret         string     `db:"secret" json:"-"`          // base32 TOTP secret, totp only
	ChannelAddress string     `db:"channel_address" json:"-"` // relay channel id, relay only
	IsEnabled      bool       `db:"is_enabled" json:"is_enabled"`
	VerifiedAt     *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	LastUsedAt     *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the record is an in-progress enrollment.
func (m *TwoFactorMethod) Pending() bool {
	return !m.IsEnabled && m.VerifiedAt == nil
}
