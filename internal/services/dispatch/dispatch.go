// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package dispatch routes one-time codes to their delivery channel. It holds
// no business logic beyond channel selection; enrollment and verification
// stay with the twofactor service.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/twofactor/internal/i18n"
)

var (
	// ErrDeliveryFailed wraps transport send failures. Callers surface it as
	// "delivery failed" and may offer a manual resend.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrRelayNotConfigured is returned before any delivery attempt when the
	// relay transport has no credentials.
	ErrRelayNotConfigured = errors.New("relay transport not configured")
)

// EmailTransport sends plain-text mail.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RelayTransport sends text into an external chat channel.
type RelayTransport interface {
	Send(ctx context.Context, channelID, text string) error
	IsConfigured() bool
	BotIdentity() (name, handle string)
}

// Dispatcher routes codes and enrollment links over the out-of-band
// transports.
type Dispatcher struct {
	email EmailTransport
	relay RelayTransport
}

// New creates a dispatcher over the given transports.
func New(email EmailTransport, relay RelayTransport) *Dispatcher {
	return &Dispatcher{email: email, relay: relay}
}

// SendEmailCode delivers a code to an email address.
func (d *Dispatcher) SendEmailCode(ctx context.Context, address, code string, ttlMinutes int) error {
	subject := i18n.T(ctx, "code_email_subject")
	body := i18n.TData(ctx, "code_email_body", map[string]any{
		"Code":    code,
		"Minutes": ttlMinutes,
	})

	if err := d.email.Send(ctx, address, subject, body); err != nil {
		slog.Error("delivery_failed", "channel", "email", "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// SendRelayCode delivers a code into a chat channel.
func (d *Dispatcher) SendRelayCode(ctx context.Context, channelID, code string, ttlMinutes int) error {
	if !d.relay.IsConfigured() {
		return ErrRelayNotConfigured
	}

	text := i18n.TData(ctx, "code_relay_message", map[string]any{
		"Code":    code,
		"Minutes": ttlMinutes,
	})

	if err := d.relay.Send(ctx, channelID, text); err != nil {
		slog.Error("delivery_failed", "channel", "relay", "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// SendEnrollmentLink delivers the account-linking deep link into a chat
// channel during relay enrollment.
func (d *Dispatcher) SendEnrollmentLink(ctx context.Context, channelID, link string, ttlMinutes int) error {
	if !d.relay.IsConfigured() {
		return ErrRelayNotConfigured
	}

	text := i18n.TData(ctx, "enrollment_link_message", map[string]any{
		"Link":    link,
		"Minutes": ttlMinutes,
	})

	if err := d.relay.Send(ctx, channelID, text); err != nil {
		slog.Error("delivery_failed", "channel", "relay", "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// RelayConfigured reports whether the relay transport can deliver.
func (d *Dispatcher) RelayConfigured() bool {
	return d.relay.IsConfigured()
}

// BotIdentity exposes the relay bot's name and handle for setup payloads.
func (d *Dispatcher) BotIdentity() (name, handle string) {
	return d.relay.BotIdentity()
}
