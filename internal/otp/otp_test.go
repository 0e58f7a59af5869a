// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/twofactor/internal/otp"
)

func TestGenerateCode(t *testing.T) {
	code, err := otp.GenerateCode()

	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric: %q", code)
	}
}

func TestGenerateCode_ZeroPadded(t *testing.T) {
	// Over enough draws a code below 100000 shows up; it must keep its
	// leading zero.
	for range 2000 {
		code, err := otp.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
	}
}

func TestGenerateSecret(t *testing.T) {
	secret, err := otp.GenerateSecret()

	require.NoError(t, err)
	// 20 bytes base32 without padding = 32 characters
	assert.Len(t, secret, 32)
	assert.Equal(t, strings.ToUpper(secret), secret)
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := otp.GenerateSecret()
	require.NoError(t, err)
	b, err := otp.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyTOTP_CurrentCode(t *testing.T) {
	secret, err := otp.GenerateSecret()
	require.NoError(t, err)

	code, err := otp.CurrentTOTP(secret)
	require.NoError(t, err)

	assert.True(t, otp.VerifyTOTP(secret, code, 0))
}

func TestVerifyTOTP_WrongCode(t *testing.T) {
	secret, err := otp.GenerateSecret()
	require.NoError(t, err)

	code, err := otp.CurrentTOTP(secret)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	assert.False(t, otp.VerifyTOTP(secret, wrong, 1))
}

func TestVerifyTOTP_MalformedSecret(t *testing.T) {
	// A bad secret verifies as false, never as an error to the caller.
	assert.False(t, otp.VerifyTOTP("not-a-base32-secret!!!", "123456", 1))
	assert.False(t, otp.VerifyTOTP("", "123456", 1))
}

func TestProvisioningURI(t *testing.T) {
	uri := otp.ProvisioningURI("example", "user@example.com", "JBSWY3DPEHPK3PXP")

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"), uri)
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=example")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "digits=6")
}
