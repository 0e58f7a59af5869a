// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package twofactor

import (
	"context"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/otp"
	"codeberg.org/oliverandrich/twofactor/internal/services/codes"
)

// verifier checks a submitted code against one method record. One
// implementation per method variant keeps channel dispatch out of the
// orchestration code.
type verifier interface {
	verify(ctx context.Context, method *models.TwoFactorMethod, code string) (bool, error)
}

// totpVerifier validates time-based codes against the stored shared secret.
type totpVerifier struct {
	skew uint
}

func (v totpVerifier) verify(_ context.Context, method *models.TwoFactorMethod, code string) (bool, error) {
	return otp.VerifyTOTP(method.Secret, code, v.skew), nil
}

// transientVerifier spends single-use codes in the transient code store.
type transientVerifier struct {
	store *codes.Store
}

func (v transientVerifier) verify(ctx context.Context, method *models.TwoFactorMethod, code string) (bool, error) {
	return v.store.Verify(ctx, method.UserID, method.Method, code)
}

func (s *Service) verifierFor(method models.Method) verifier {
	if method == models.MethodTOTP {
		return totpVerifier{skew: s.skew}
	}
	return transientVerifier{store: s.codes}
}

// DisplayName returns the user-facing name of a method for challenge
// metadata.
func DisplayName(method models.Method) string {
	switch method {
	case models.MethodTOTP:
		return "Authenticator app"
	case models.MethodEmail:
		return "Email"
	case models.MethodRelay:
		return "Chat relay"
	}
	return string(method)
}
