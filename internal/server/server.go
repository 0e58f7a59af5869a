// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the two-factor service together and runs the HTTP
// boundary.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/twofactor/internal/config"
	"codeberg.org/oliverandrich/twofactor/internal/database"
	"codeberg.org/oliverandrich/twofactor/internal/handlers"
	"codeberg.org/oliverandrich/twofactor/internal/i18n"
	"codeberg.org/oliverandrich/twofactor/internal/repository"
	"codeberg.org/oliverandrich/twofactor/internal/services/auth"
	"codeberg.org/oliverandrich/twofactor/internal/services/codes"
	"codeberg.org/oliverandrich/twofactor/internal/services/dispatch"
	"codeberg.org/oliverandrich/twofactor/internal/services/twofactor"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	// Transports
	emailTransport, err := dispatch.NewSMTPTransport(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to create email transport: %w", err)
	}
	relayTransport := dispatch.NewBotRelayTransport(&cfg.Relay)
	if !relayTransport.IsConfigured() {
		slog.Warn("relay transport not configured, relay enrollment disabled")
	}

	// Services
	store := codes.NewStore(repo)
	dispatcher := dispatch.New(emailTransport, relayTransport)
	tfService := twofactor.NewService(repo, store, dispatcher, cfg.TwoFactor.Issuer, uint(cfg.TwoFactor.TOTPSkew))
	authService := auth.NewService(repo, tfService)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, authService, tfService)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, authService *auth.Service, tfService *twofactor.Service) {
	h := handlers.New(authService, tfService)

	e.GET("/health", h.Health)

	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/login/verify", h.LoginVerify)

	e.GET("/users/:id/2fa", h.Status)
	e.POST("/users/:id/2fa/totp", h.EnableTOTP)
	e.POST("/users/:id/2fa/email", h.EnableEmail)
	e.POST("/users/:id/2fa/relay", h.EnableRelay)
	e.POST("/users/:id/2fa/confirm", h.Confirm)
	e.POST("/users/:id/2fa/code", h.RequestCode)
	e.DELETE("/users/:id/2fa", h.Disable)

	// Bot webhook glue reports linked channels here.
	e.POST("/2fa/relay/link", h.LinkRelay)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
