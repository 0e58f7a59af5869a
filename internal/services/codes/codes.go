// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codes is the transient code store: it issues hashed, single-use,
// expiring codes for the out-of-band channels and spends them exactly once.
package codes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/otp"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
)

// TTL is how long an issued code stays valid.
const TTL = 5 * time.Minute

// Store issues and verifies transient out-of-band codes.
type Store struct {
	repo *repository.Repository
}

// NewStore creates a transient code store.
func NewStore(repo *repository.Repository) *Store {
	return &Store{repo: repo}
}

// HashCode computes the SHA256 hash of a code. Plaintext codes are never
// persisted.
func HashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}

// Issue generates a fresh 6-digit code for user+method and stores its hash
// with a 5-minute expiry. Previously issued, still-unused codes for the same
// user+method are invalidated so only one challenge is live at a time. The
// plaintext is returned for delivery by the dispatcher and must not travel
// anywhere else.
func (s *Store) Issue(ctx context.Context, userID int64, method models.Method, issuingIP string) (string, error) {
	code, err := otp.GenerateCode()
	if err != nil {
		return "", err
	}

	now := time.Now()
	if err := s.repo.InvalidateOutstandingCodes(ctx, userID, method, now); err != nil {
		return "", fmt.Errorf("invalidating outstanding codes: %w", err)
	}
	if err := s.repo.CreateTransientCode(ctx, userID, method, HashCode(code), now.Add(TTL), issuingIP); err != nil {
		return "", fmt.Errorf("storing code: %w", err)
	}

	return code, nil
}

// Verify spends the code if it matches a live challenge for user+method.
// Consumption is atomic in the store, so concurrent submissions of the same
// code succeed at most once.
func (s *Store) Verify(ctx context.Context, userID int64, method models.Method, code string) (bool, error) {
	return s.repo.ConsumeTransientCode(ctx, userID, method, HashCode(code), time.Now())
}

// PurgeExpired removes codes past their expiry. Maintenance sweep, not part
// of the verification hot path.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredTransientCodes(ctx, time.Now())
}
