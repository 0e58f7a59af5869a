// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"
)

// SentMail is one message captured by FakeEmailTransport.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// FakeEmailTransport records outbound mail instead of sending it.
type FakeEmailTransport struct {
	mu   sync.Mutex
	Err  error
	Sent []SentMail
}

func (f *FakeEmailTransport) Send(_ context.Context, to, subject, body string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

// LastMail returns the most recently captured message.
func (f *FakeEmailTransport) LastMail() SentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return SentMail{}
	}
	return f.Sent[len(f.Sent)-1]
}

// SentRelayMessage is one message captured by FakeRelayTransport.
type SentRelayMessage struct {
	ChannelID string
	Text      string
}

// FakeRelayTransport records outbound chat messages instead of sending them.
type FakeRelayTransport struct {
	mu         sync.Mutex
	Configured bool
	Name       string
	Handle     string
	Err        error
	Sent       []SentRelayMessage
}

func (f *FakeRelayTransport) Send(_ context.Context, channelID, text string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, SentRelayMessage{ChannelID: channelID, Text: text})
	return nil
}

func (f *FakeRelayTransport) IsConfigured() bool {
	return f.Configured
}

func (f *FakeRelayTransport) BotIdentity() (string, string) {
	return f.Name, f.Handle
}

// LastRelayMessage returns the most recently captured message.
func (f *FakeRelayTransport) LastRelayMessage() SentRelayMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return SentRelayMessage{}
	}
	return f.Sent[len(f.Sent)-1]
}
