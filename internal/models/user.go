// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is the minimal account record the two-factor subsystem hangs off.
// Primary credential handling lives with the caller; we only need an
// identity, an email address for out-of-band delivery, and a password hash
// for the login endpoint that fronts the challenge flow.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
