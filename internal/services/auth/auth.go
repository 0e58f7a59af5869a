// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth performs the primary credential check that precedes the
// two-factor challenge. It only reports whether a second factor is still
// required; session issuance belongs to the caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
	"codeberg.org/oliverandrich/twofactor/internal/services/twofactor"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo      *repository.Repository
	twofactor *twofactor.Service
}

func NewService(repo *repository.Repository, tf *twofactor.Service) *Service {
	return &Service{repo: repo, twofactor: tf}
}

// LoginResult carries the outcome of a successful credential check. When
// Challenge is non-nil the caller must collect a second-factor code before
// granting a session.
type LoginResult struct {
	User              *models.User
	RequiresTwoFactor bool
	Challenge         *twofactor.Challenge
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, string(passwordHash))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and reports whether a second factor is still
// outstanding. No session is granted here in either case.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	challenge, err := s.twofactor.LoginChallenge(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("login_success", "user_id", user.ID, "requires_two_factor", challenge != nil)
	return &LoginResult{
		User:              user,
		RequiresTwoFactor: challenge != nil,
		Challenge:         challenge,
	}, nil
}
