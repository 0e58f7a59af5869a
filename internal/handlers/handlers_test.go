// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/twofactor/internal/handlers"
	"codeberg.org/oliverandrich/twofactor/internal/i18n"
	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
	"codeberg.org/oliverandrich/twofactor/internal/services/auth"
	"codeberg.org/oliverandrich/twofactor/internal/services/codes"
	"codeberg.org/oliverandrich/twofactor/internal/services/dispatch"
	"codeberg.org/oliverandrich/twofactor/internal/services/twofactor"
	"codeberg.org/oliverandrich/twofactor/internal/testutil"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type env struct {
	echo  *echo.Echo
	repo  *repository.Repository
	tf    *twofactor.Service
	email *testutil.FakeEmailTransport
	relay *testutil.FakeRelayTransport
	user  *models.User
}

func newEnv(t *testing.T, relayConfigured bool) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	email := &testutil.FakeEmailTransport{}
	relay := &testutil.FakeRelayTransport{
		Configured: relayConfigured,
		Name:       "Verification Bot",
		Handle:     "@verification_bot",
	}
	tf := twofactor.NewService(repo, codes.NewStore(repo), dispatch.New(email, relay), "example", 1)
	authService := auth.NewService(repo, tf)
	h := handlers.New(authService, tf)

	e := echo.New()
	e.GET("/health", h.Health)
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/login/verify", h.LoginVerify)
	e.GET("/users/:id/2fa", h.Status)
	e.DELETE("/users/:id/2fa", h.Disable)
	e.POST("/users/:id/2fa/totp", h.EnableTOTP)
	e.POST("/users/:id/2fa/email", h.EnableEmail)
	e.POST("/users/:id/2fa/relay", h.EnableRelay)
	e.POST("/users/:id/2fa/confirm", h.Confirm)
	e.POST("/users/:id/2fa/code", h.RequestCode)
	e.POST("/2fa/relay/link", h.LinkRelay)

	user := testutil.NewTestUser(t, repo, "test@example.com", "password123")
	return &env{echo: e, repo: repo, tf: tf, email: email, relay: relay, user: user}
}

func (e *env) request(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealth(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}

func TestRegisterEndpoint(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/auth/register",
		`{"email":"new@example.com","password":"password123"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotZero(t, payload["user_id"])
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/auth/register",
		`{"email":"test@example.com","password":"password123"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_exists", payload["error"])
}

func TestLoginEndpoint_InvalidCredentials(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/auth/login",
		`{"email":"test@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", payload["error"])
}

func TestLoginEndpoint_NoSecondFactor(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/auth/login",
		`{"email":"test@example.com","password":"password123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["requires_two_factor"])
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodGet, fmt.Sprintf("/users/%d/2fa", e.user.ID), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["enabled"])
}

func TestStatusEndpoint_BadUserID(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodGet, "/users/abc/2fa", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user_id", payload["error"])
}

func TestEnableTOTPEndpoint(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/totp", e.user.ID), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, payload["secret"])
	assert.Contains(t, payload["provisioning_uri"], "otpauth://totp/")
}

func TestEnableTOTPEndpoint_UnknownUser(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/users/9999/2fa/totp", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", payload["error"])
}

func TestEmailEnrollmentFlow(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/email", e.user.ID), "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test@example.com", payload["address"])

	code := testutil.ExtractCode(t, e.email.LastMail().Body)
	rec, payload = e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/confirm", e.user.ID),
		fmt.Sprintf(`{"code":%q}`, code))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["enabled"])

	rec, payload = e.request(t, http.MethodGet, fmt.Sprintf("/users/%d/2fa", e.user.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["enabled"])
	assert.Equal(t, string(models.MethodEmail), payload["method"])
}

func TestConfirmEndpoint_WrongCode(t *testing.T) {
	e := newEnv(t, true)

	rec, _ := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/email", e.user.ID), "{}")
	require.Equal(t, http.StatusOK, rec.Code)

	code := testutil.ExtractCode(t, e.email.LastMail().Body)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/confirm", e.user.ID),
		fmt.Sprintf(`{"code":%q}`, wrong))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_code", payload["error"])
}

func TestConfirmEndpoint_NoPendingSetup(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/confirm", e.user.ID),
		`{"code":"123456"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_pending_setup", payload["error"])
}

func TestEnableRelayEndpoint_NotConfigured(t *testing.T) {
	e := newEnv(t, false)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/relay", e.user.ID), "{}")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "relay_not_configured", payload["error"])
}

func TestRelayEnrollmentFlow(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/relay", e.user.ID), "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Verification Bot", payload["bot_name"])
	token, _ := payload["link_token"].(string)
	require.NotEmpty(t, token)

	rec, payload = e.request(t, http.MethodPost, "/2fa/relay/link",
		fmt.Sprintf(`{"token":%q,"channel_id":"chan-1"}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["linked"])

	code := testutil.ExtractCode(t, e.relay.LastRelayMessage().Text)
	rec, _ = e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/confirm", e.user.ID),
		fmt.Sprintf(`{"code":%q}`, code))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLinkRelayEndpoint_UnknownToken(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, "/2fa/relay/link",
		`{"token":"bogus","channel_id":"chan-1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "link_not_pending", payload["error"])
}

func TestRequestCodeEndpoint(t *testing.T) {
	e := newEnv(t, true)

	rec, _ := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/email", e.user.ID), "{}")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/code", e.user.ID), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["sent"])
	assert.Len(t, e.email.Sent, 2)
}

func TestRequestCodeEndpoint_NoMethod(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodPost, fmt.Sprintf("/users/%d/2fa/code", e.user.ID), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "method_not_enabled", payload["error"])
}

func TestDisableEndpoint_NotEnabled(t *testing.T) {
	e := newEnv(t, true)

	rec, payload := e.request(t, http.MethodDelete, fmt.Sprintf("/users/%d/2fa", e.user.ID), "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_enabled", payload["error"])
}

func TestDisableEndpoint(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	_, err := e.tf.EnableEmail(ctx, e.user.ID, "")
	require.NoError(t, err)
	code := testutil.ExtractCode(t, e.email.LastMail().Body)
	require.NoError(t, e.tf.ConfirmEnrollment(ctx, e.user.ID, code))

	rec, payload := e.request(t, http.MethodDelete, fmt.Sprintf("/users/%d/2fa", e.user.ID), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["disabled"])
}

func TestLoginVerifyEndpoint(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	_, err := e.tf.EnableEmail(ctx, e.user.ID, "")
	require.NoError(t, err)
	code := testutil.ExtractCode(t, e.email.LastMail().Body)
	require.NoError(t, e.tf.ConfirmEnrollment(ctx, e.user.ID, code))

	rec, payload := e.request(t, http.MethodPost, "/auth/login",
		`{"email":"test@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["requires_two_factor"])

	require.NoError(t, e.tf.RequestCode(ctx, e.user.ID, ""))
	code = testutil.ExtractCode(t, e.email.LastMail().Body)

	rec, payload = e.request(t, http.MethodPost, "/auth/login/verify",
		fmt.Sprintf(`{"user_id":%d,"code":%q}`, e.user.ID, code))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["verified"])
}
