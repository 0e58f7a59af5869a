// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/twofactor/internal/repository"
	"codeberg.org/oliverandrich/twofactor/internal/services/auth"
	"codeberg.org/oliverandrich/twofactor/internal/services/dispatch"
	"codeberg.org/oliverandrich/twofactor/internal/services/twofactor"
)

// errorJSON maps service errors to HTTP responses with stable reason codes.
// User-input errors stay in the 4xx range; configuration and delivery
// problems get distinct statuses so callers can show actionable guidance.
func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return reason(c, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrUserExists):
		return reason(c, http.StatusConflict, "user_exists")
	case errors.Is(err, auth.ErrInvalidEmail):
		return reason(c, http.StatusBadRequest, "invalid_email")
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		return reason(c, http.StatusConflict, "already_enabled")
	case errors.Is(err, twofactor.ErrNotEnabled):
		return reason(c, http.StatusConflict, "not_enabled")
	case errors.Is(err, twofactor.ErrNoPendingSetup):
		return reason(c, http.StatusBadRequest, "no_pending_setup")
	case errors.Is(err, twofactor.ErrInvalidCode):
		return reason(c, http.StatusBadRequest, "invalid_code")
	case errors.Is(err, twofactor.ErrMethodNotEnabled):
		return reason(c, http.StatusBadRequest, "method_not_enabled")
	case errors.Is(err, twofactor.ErrLinkNotPending):
		return reason(c, http.StatusBadRequest, "link_not_pending")
	case errors.Is(err, dispatch.ErrRelayNotConfigured):
		return reason(c, http.StatusUnprocessableEntity, "relay_not_configured")
	case errors.Is(err, dispatch.ErrDeliveryFailed):
		return reason(c, http.StatusBadGateway, "delivery_failed")
	case errors.Is(err, repository.ErrNotFound):
		return reason(c, http.StatusNotFound, "not_found")
	}

	slog.Error("request_failed", "error", err)
	return reason(c, http.StatusInternalServerError, "internal_error")
}

func reason(c echo.Context, status int, code string) error {
	return c.JSON(status, map[string]string{"error": code})
}
