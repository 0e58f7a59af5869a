// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for account creation.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a user account.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}
	if req.Email == "" || req.Password == "" {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	user, err := h.auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"user_id": user.ID})
}

// LoginRequest is the request body for the primary credential check.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks primary credentials. When a second factor is enabled the
// response carries the challenge metadata and no session; the caller must
// resubmit with a code via LoginVerify.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorJSON(c, err)
	}

	if result.RequiresTwoFactor {
		return c.JSON(http.StatusOK, map[string]any{
			"user_id":             result.User.ID,
			"requires_two_factor": true,
			"challenge":           result.Challenge,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user_id":             result.User.ID,
		"requires_two_factor": false,
	})
}

// LoginVerifyRequest is the request body for the second step of login.
type LoginVerifyRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// LoginVerify checks a submitted second-factor code. On success the caller
// may proceed to issue a session.
func (h *Handlers) LoginVerify(c echo.Context) error {
	var req LoginVerifyRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}
	if req.UserID == 0 || req.Code == "" {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	if err := h.twofactor.VerifyLoginChallenge(c.Request().Context(), req.UserID, req.Code); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"verified": true})
}
