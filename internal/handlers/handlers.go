// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers exposes the two-factor boundary over JSON.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/twofactor/internal/services/auth"
	"codeberg.org/oliverandrich/twofactor/internal/services/twofactor"
)

// Handlers contains the HTTP handlers for the two-factor boundary.
type Handlers struct {
	auth      *auth.Service
	twofactor *twofactor.Service
}

// New creates a Handlers instance.
func New(authService *auth.Service, tf *twofactor.Service) *Handlers {
	return &Handlers{auth: authService, twofactor: tf}
}

// Health reports service liveness.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
