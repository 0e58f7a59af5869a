// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package twofactor orchestrates enrollment and login-time verification of
// second factors. Enrollment walks NoFactor → Pending → Enabled; disabling
// wipes all records. At most one method is enabled per user at any time.
package twofactor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/otp"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
	"codeberg.org/oliverandrich/twofactor/internal/services/codes"
	"codeberg.org/oliverandrich/twofactor/internal/services/dispatch"
)

// LinkTokenTTL is how long a relay account-linking token stays valid.
const LinkTokenTTL = 10 * time.Minute

const codeTTLMinutes = int(codes.TTL / time.Minute)
const linkTTLMinutes = int(LinkTokenTTL / time.Minute)

// Service is the two-factor enrollment state machine and login challenge
// coordinator. All collaborators are injected; there are no ambient
// singletons.
type Service struct {
	repo       *repository.Repository
	codes      *codes.Store
	dispatcher *dispatch.Dispatcher
	issuer     string
	skew       uint
}

// NewService creates a two-factor service.
func NewService(repo *repository.Repository, store *codes.Store, dispatcher *dispatch.Dispatcher, issuer string, skew uint) *Service {
	return &Service{
		repo:       repo,
		codes:      store,
		dispatcher: dispatcher,
		issuer:     issuer,
		skew:       skew,
	}
}

// Status is the caller-facing view of a user's two-factor state.
type Status struct {
	Enabled    bool          `json:"enabled"`
	Method     models.Method `json:"method,omitempty"`
	LastUsedAt *time.Time    `json:"last_used_at,omitempty"`
}

// TOTPSetup is returned once at enrollment; the secret is never displayed
// again afterwards.
type TOTPSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// EmailSetup confirms that a code was issued and delivered to the account
// address.
type EmailSetup struct {
	Address string `json:"address"`
}

// RelaySetup tells the caller how to connect the chat bot. The link token is
// embedded in the deep link and matched server-side when the bot reports the
// channel.
type RelaySetup struct {
	BotName   string `json:"bot_name"`
	BotHandle string `json:"bot_handle"`
	LinkToken string `json:"link_token"`
}

// GetStatus reports whether the user has an enabled method. Finding more
// than one enabled method is an invariant violation and is surfaced, not
// repaired.
func (s *Service) GetStatus(ctx context.Context, userID int64) (*Status, error) {
	method, err := s.repo.GetEnabledMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Status{Enabled: false}, nil
		}
		if errors.Is(err, repository.ErrTooManyEnabled) {
			slog.Error("twofactor_invariant_violation", "user_id", userID)
			return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		return nil, err
	}
	return &Status{
		Enabled:    true,
		Method:     method.Method,
		LastUsedAt: method.LastUsedAt,
	}, nil
}

// EnableTOTP starts an authenticator-app enrollment. Any previously enabled
// method and its codes are torn down; the new record stays pending until the
// first code is confirmed.
func (s *Service) EnableTOTP(ctx context.Context, userID int64) (*TOTPSetup, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAlreadyEnabled(ctx, userID, models.MethodTOTP); err != nil {
		return nil, err
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.ReplacePendingMethod(ctx, userID, models.MethodTOTP, secret); err != nil {
		return nil, fmt.Errorf("creating pending enrollment: %w", err)
	}

	slog.Info("twofactor_enroll_started", "user_id", userID, "method", models.MethodTOTP)
	return &TOTPSetup{
		Secret:          secret,
		ProvisioningURI: otp.ProvisioningURI(s.issuer, user.Email, secret),
	}, nil
}

// EnableEmail starts an email enrollment and immediately issues and delivers
// the first code to the account address.
func (s *Service) EnableEmail(ctx context.Context, userID int64, issuingIP string) (*EmailSetup, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAlreadyEnabled(ctx, userID, models.MethodEmail); err != nil {
		return nil, err
	}

	if _, err := s.repo.ReplacePendingMethod(ctx, userID, models.MethodEmail, ""); err != nil {
		return nil, fmt.Errorf("creating pending enrollment: %w", err)
	}

	code, err := s.codes.Issue(ctx, userID, models.MethodEmail, issuingIP)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.SendEmailCode(ctx, user.Email, code, codeTTLMinutes); err != nil {
		return nil, err
	}

	slog.Info("twofactor_enroll_started", "user_id", userID, "method", models.MethodEmail)
	return &EmailSetup{Address: user.Email}, nil
}

// EnableRelay starts a chat-relay enrollment. The relay transport must be
// configured; without credentials the enable flow is rejected before any
// record is created. The returned link token connects the user's chat
// channel to this enrollment; when channelHint names a channel the bot
// already knows, the deep link is pushed there directly.
func (s *Service) EnableRelay(ctx context.Context, userID int64, channelHint string) (*RelaySetup, error) {
	if !s.dispatcher.RelayConfigured() {
		return nil, dispatch.ErrRelayNotConfigured
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.checkNotAlreadyEnabled(ctx, userID, models.MethodRelay); err != nil {
		return nil, err
	}

	if _, err := s.repo.ReplacePendingMethod(ctx, userID, models.MethodRelay, ""); err != nil {
		return nil, fmt.Errorf("creating pending enrollment: %w", err)
	}

	token := newLinkToken(userID)
	if err := s.repo.CreateRelayLinkToken(ctx, userID, codes.HashCode(token), time.Now().Add(LinkTokenTTL)); err != nil {
		return nil, fmt.Errorf("storing link token: %w", err)
	}

	name, handle := s.dispatcher.BotIdentity()

	if channelHint != "" {
		link := fmt.Sprintf("%s?start=%s", handle, token)
		if err := s.dispatcher.SendEnrollmentLink(ctx, channelHint, link, linkTTLMinutes); err != nil {
			return nil, err
		}
	}

	slog.Info("twofactor_enroll_started", "user_id", userID, "method", models.MethodRelay)
	return &RelaySetup{
		BotName:   name,
		BotHandle: handle,
		LinkToken: token,
	}, nil
}

// LinkRelayChannel resolves a link token to its pending relay enrollment,
// attaches the chat channel and issues the first code into it. Fails when no
// pending relay enrollment exists or the token is unknown or expired.
func (s *Service) LinkRelayChannel(ctx context.Context, token, channelID string) error {
	userID, err := s.repo.ConsumeRelayLinkToken(ctx, codes.HashCode(token), time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotPending
		}
		return err
	}

	pending, err := s.repo.GetPendingMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotPending
		}
		return err
	}
	if pending.Method != models.MethodRelay || pending.ChannelAddress != "" {
		return ErrLinkNotPending
	}

	if err := s.repo.SetMethodChannelAddress(ctx, pending.ID, channelID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotPending
		}
		return err
	}

	code, err := s.codes.Issue(ctx, userID, models.MethodRelay, "")
	if err != nil {
		return err
	}
	if err := s.dispatcher.SendRelayCode(ctx, channelID, code, codeTTLMinutes); err != nil {
		return err
	}

	slog.Info("twofactor_relay_linked", "user_id", userID)
	return nil
}

// ConfirmEnrollment verifies the submitted code against the pending method
// and flips it to enabled. On failure the pending record is left untouched;
// the user may retry or request a new code.
func (s *Service) ConfirmEnrollment(ctx context.Context, userID int64, code string) error {
	pending, err := s.repo.GetPendingMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoPendingSetup
		}
		return err
	}

	ok, err := s.verifierFor(pending.Method).verify(ctx, pending, code)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("twofactor_confirm_failed", "user_id", userID, "method", pending.Method)
		return ErrInvalidCode
	}

	if err := s.repo.MarkMethodEnabled(ctx, pending.ID, userID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The pending record was completed or torn down concurrently.
			return ErrNoPendingSetup
		}
		return err
	}

	slog.Info("twofactor_enabled", "user_id", userID, "method", pending.Method)
	return nil
}

// Disable removes all two-factor state for the user. A user without an
// enabled method gets ErrNotEnabled, not silent success.
func (s *Service) Disable(ctx context.Context, userID int64) error {
	if err := s.repo.DisableTwoFactor(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotEnabled
		}
		return err
	}
	slog.Info("twofactor_disabled", "user_id", userID)
	return nil
}

// RequestCode issues and delivers a fresh code for the user's out-of-band
// method: the enabled one, or a pending one mid-enrollment. Time-based
// enrollments have nothing to deliver.
func (s *Service) RequestCode(ctx context.Context, userID int64, issuingIP string) error {
	method, err := s.activeOutOfBandMethod(ctx, userID)
	if err != nil {
		return err
	}

	code, err := s.codes.Issue(ctx, userID, method.Method, issuingIP)
	if err != nil {
		return err
	}

	switch method.Method {
	case models.MethodEmail:
		user, err := s.repo.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.dispatcher.SendEmailCode(ctx, user.Email, code, codeTTLMinutes)
	case models.MethodRelay:
		if method.ChannelAddress == "" {
			return ErrMethodNotEnabled
		}
		return s.dispatcher.SendRelayCode(ctx, method.ChannelAddress, code, codeTTLMinutes)
	}
	return ErrMethodNotEnabled
}

func (s *Service) activeOutOfBandMethod(ctx context.Context, userID int64) (*models.TwoFactorMethod, error) {
	method, err := s.repo.GetEnabledMethod(ctx, userID)
	if err == nil {
		if !method.Method.OutOfBand() {
			return nil, ErrMethodNotEnabled
		}
		return method, nil
	}
	if errors.Is(err, repository.ErrTooManyEnabled) {
		slog.Error("twofactor_invariant_violation", "user_id", userID)
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	pending, err := s.repo.GetPendingMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMethodNotEnabled
		}
		return nil, err
	}
	if !pending.Method.OutOfBand() {
		return nil, ErrMethodNotEnabled
	}
	return pending, nil
}

// checkNotAlreadyEnabled rejects re-enabling the method that is already
// active. Switching to a different method is allowed and replaces the old
// one.
func (s *Service) checkNotAlreadyEnabled(ctx context.Context, userID int64, method models.Method) error {
	enabled, err := s.repo.GetEnabledMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if errors.Is(err, repository.ErrTooManyEnabled) {
			slog.Error("twofactor_invariant_violation", "user_id", userID)
			return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		return err
	}
	if enabled.Method == method {
		return ErrAlreadyEnabled
	}
	return nil
}

// newLinkToken derives an opaque token from the user, the current time and a
// random component. Not decodable; only ever matched against the stored
// hash.
func newLinkToken(userID int64) string {
	raw := fmt.Sprintf("%d:%d:%s", userID, time.Now().UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
