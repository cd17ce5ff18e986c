// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telegram sends one-way notifications through the Telegram Bot
// API. Delivery is fire-and-forget: callers never block on the network
// and a failed send only produces a log line.
package telegram

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/krre/ocean-backend/internal/config"
	"github.com/krre/ocean-backend/internal/logging"
)

// Telegram rejects messages over 4096 characters. Truncated messages
// are cut further back to leave room for the suffix and closing markup.
const (
	maxMessageLen    = 4096
	truncatedLen     = maxMessageLen - 16
	truncationSuffix = "[...]"
)

// Bot delivers messages to the configured channel and admin chat. A nil
// *Bot (notifications disabled) silently drops every message.
type Bot struct {
	cfg     config.TelegramConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// New returns a Bot, or nil when notifications are disabled.
func New(cfg config.TelegramConfig) *Bot {
	if !cfg.Enabled {
		return nil
	}
	return &Bot{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name: "telegram",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: time.Minute,
		}),
	}
}

// SendMessage posts text to the public channel.
func (b *Bot) SendMessage(text string) {
	if b == nil {
		return
	}
	go b.send(b.cfg.Channel, text)
}

// SendAdminMessage posts text to the admin chat.
func (b *Bot) SendAdminMessage(text string) {
	if b == nil {
		return
	}
	go b.send(b.cfg.AdminChatID, text)
}

type sendMessageParams struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (b *Bot) send(chatID, text string) {
	if chatID == "" {
		return
	}

	params := sendMessageParams{
		ChatID:    chatID,
		Text:      Truncate(text),
		ParseMode: "HTML",
	}

	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.post("sendMessage", params)
	})
	if err != nil {
		logging.Error().Err(err).Str("chat_id", chatID).Msg("Telegram send failed")
	}
}

func (b *Bot) post(method string, params any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.cfg.URL, b.cfg.Token, method)
	resp, err := b.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("api error: %s", apiResp.Description)
	}
	return nil
}

// Truncate caps text at the Telegram message limit, marking the cut.
// The limit counts characters, not bytes. Text within the limit passes
// through unchanged.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return text
	}
	return string(runes[:truncatedLen]) + truncationSuffix
}
