// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package twofactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
)

// Challenge is the metadata returned after a successful primary-credential
// check when a second factor is still outstanding. The caller must resubmit
// with a code before any session is granted.
type Challenge struct {
	Method      models.Method `json:"method"`
	DisplayName string        `json:"display_name"`
}

// LoginChallenge decides whether the user needs a second factor. A nil
// challenge means the caller may proceed to issue a session.
func (s *Service) LoginChallenge(ctx context.Context, userID int64) (*Challenge, error) {
	method, err := s.repo.GetEnabledMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, repository.ErrTooManyEnabled) {
			slog.Error("twofactor_invariant_violation", "user_id", userID)
			return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		return nil, err
	}
	return &Challenge{
		Method:      method.Method,
		DisplayName: DisplayName(method.Method),
	}, nil
}

// VerifyLoginChallenge checks a submitted code against the user's enabled
// method and stamps last_used_at on success. A wrong, expired or replayed
// code yields ErrInvalidCode; the caller may let the user retry. No lockout
// is applied here.
func (s *Service) VerifyLoginChallenge(ctx context.Context, userID int64, code string) error {
	method, err := s.repo.GetEnabledMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotEnabled
		}
		if errors.Is(err, repository.ErrTooManyEnabled) {
			slog.Error("twofactor_invariant_violation", "user_id", userID)
			return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		return err
	}

	ok, err := s.verifierFor(method.Method).verify(ctx, method, code)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("twofactor_challenge_failed", "user_id", userID, "method", method.Method)
		return ErrInvalidCode
	}

	if err := s.repo.TouchMethodLastUsed(ctx, method.ID, time.Now()); err != nil {
		return err
	}

	slog.Info("twofactor_challenge_passed", "user_id", userID, "method", method.Method)
	return nil
}
