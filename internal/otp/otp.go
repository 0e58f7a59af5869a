// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp generates and verifies one-time codes: random 6-digit codes
// for the out-of-band channels and RFC 6238 time-based codes for the
// authenticator-app channel.
package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Digits is the length of all codes handled by this package.
	Digits = 6
	// Period is the TOTP time-step size in seconds.
	Period = 30
	// SecretSize is the raw byte length of generated TOTP secrets (160 bits).
	SecretSize = 20
)

var codeMax = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random, zero-padded 6-digit code from the
// CSPRNG. Entropy exhaustion is the only failure mode and is not retryable.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeMax)
	if err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateSecret returns a fresh base32-encoded TOTP shared secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// VerifyTOTP checks a submitted code against the shared secret, accepting
// codes from up to skew time steps before or after the current one. A
// malformed secret verifies as false; the caller treats that as an invalid
// code, not a system error.
func VerifyTOTP(secret, code string, skew uint) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// CurrentTOTP returns the code for the current time step. Self-test and
// debugging only; production verification always goes through VerifyTOTP.
func CurrentTOTP(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now().UTC())
}

// ProvisioningURI builds the otpauth:// URL that authenticator apps consume
// during enrollment. Pure string construction, no I/O.
func ProvisioningURI(issuer, accountLabel, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", fmt.Sprintf("%d", Period))
	v.Set("digits", fmt.Sprintf("%d", Digits))
	v.Set("algorithm", "SHA1")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + accountLabel,
		RawQuery: v.Encode(),
	}
	return u.String()
}
