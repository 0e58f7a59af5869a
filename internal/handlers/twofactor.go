// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func userIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Status reports the user's two-factor state.
func (h *Handlers) Status(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	status, err := h.twofactor.GetStatus(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// EnableTOTP starts an authenticator-app enrollment. The secret and
// provisioning URI in the response are shown once and never again.
func (h *Handlers) EnableTOTP(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	setup, err := h.twofactor.EnableTOTP(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, setup)
}

// EnableEmail starts an email enrollment; the first code is delivered
// immediately.
func (h *Handlers) EnableEmail(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	setup, err := h.twofactor.EnableEmail(c.Request().Context(), userID, c.RealIP())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, setup)
}

// EnableRelayRequest optionally names a chat channel the bot already knows,
// so the enrollment link can be pushed there directly.
type EnableRelayRequest struct {
	ChannelHint string `json:"channel_hint"`
}

// EnableRelay starts a chat-relay enrollment.
func (h *Handlers) EnableRelay(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	var req EnableRelayRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	setup, err := h.twofactor.EnableRelay(c.Request().Context(), userID, req.ChannelHint)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, setup)
}

// LinkRelayRequest is posted by the bot webhook glue once the user opened
// the deep link in their chat client.
type LinkRelayRequest struct {
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
}

// LinkRelay attaches a chat channel to a pending relay enrollment.
func (h *Handlers) LinkRelay(c echo.Context) error {
	var req LinkRelayRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}
	if req.Token == "" || req.ChannelID == "" {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	if err := h.twofactor.LinkRelayChannel(c.Request().Context(), req.Token, req.ChannelID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"linked": true})
}

// ConfirmRequest carries the code that completes an enrollment.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// Confirm verifies the submitted code and enables the pending method.
func (h *Handlers) Confirm(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}
	if req.Code == "" {
		return reason(c, http.StatusBadRequest, "invalid_request")
	}

	if err := h.twofactor.ConfirmEnrollment(c.Request().Context(), userID, req.Code); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"enabled": true})
}

// RequestCode issues and delivers a fresh code for the user's out-of-band
// method.
func (h *Handlers) RequestCode(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	if err := h.twofactor.RequestCode(c.Request().Context(), userID, c.RealIP()); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sent": true})
}

// Disable removes all two-factor state for the user.
func (h *Handlers) Disable(c echo.Context) error {
	userID, ok := userIDParam(c)
	if !ok {
		return reason(c, http.StatusBadRequest, "invalid_user_id")
	}

	if err := h.twofactor.Disable(c.Request().Context(), userID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"disabled": true})
}
