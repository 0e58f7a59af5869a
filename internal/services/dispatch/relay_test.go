// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package dispatch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/twofactor/internal/config"
	"codeberg.org/oliverandrich/twofactor/internal/services/dispatch"
)

func TestBotRelayTransport_Send(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := dispatch.NewBotRelayTransport(&config.RelayConfig{
		APIURL:   srv.URL,
		BotToken: "bot-token",
	})

	require.True(t, transport.IsConfigured())
	err := transport.Send(context.Background(), "chan-7", "hello")

	require.NoError(t, err)
	assert.Equal(t, "Bearer bot-token", gotAuth)
	assert.Equal(t, "chan-7", gotBody["channel_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestBotRelayTransport_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	transport := dispatch.NewBotRelayTransport(&config.RelayConfig{
		APIURL:   srv.URL,
		BotToken: "bot-token",
	})

	err := transport.Send(context.Background(), "chan-7", "hello")
	assert.Error(t, err)
}

func TestBotRelayTransport_NotConfigured(t *testing.T) {
	transport := dispatch.NewBotRelayTransport(&config.RelayConfig{})

	assert.False(t, transport.IsConfigured())
}

func TestBotRelayTransport_BotIdentity(t *testing.T) {
	transport := dispatch.NewBotRelayTransport(&config.RelayConfig{
		BotName:   "Verification Bot",
		BotHandle: "@verification_bot",
	})

	name, handle := transport.BotIdentity()
	assert.Equal(t, "Verification Bot", name)
	assert.Equal(t, "@verification_bot", handle)
}
