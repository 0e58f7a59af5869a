// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/twofactor/internal/config"
)

// BotRelayTransport talks to a chat-bot HTTP API to deliver messages into
// user channels. Without a bot token the transport reports itself as not
// configured and never attempts delivery.
type BotRelayTransport struct {
	cfg    *config.RelayConfig
	client *http.Client
}

// NewBotRelayTransport creates the relay transport. It is valid to construct
// one with empty credentials; IsConfigured gates every send.
func NewBotRelayTransport(cfg *config.RelayConfig) *BotRelayTransport {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotRelayTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether relay credentials are present.
func (t *BotRelayTransport) IsConfigured() bool {
	return t.cfg.APIURL != "" && t.cfg.BotToken != ""
}

// BotIdentity returns the bot's display name and handle.
func (t *BotRelayTransport) BotIdentity() (string, string) {
	return t.cfg.BotName, t.cfg.BotHandle
}

type sendMessageRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// Send posts a text message into the given channel.
func (t *BotRelayTransport) Send(ctx context.Context, channelID, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChannelID: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding relay message: %w", err)
	}

	url := fmt.Sprintf("%s/bot/sendMessage", t.cfg.APIURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.BotToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending relay message: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay API returned status %d", resp.StatusCode)
	}
	return nil
}
