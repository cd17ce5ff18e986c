// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/krre/ocean-backend/internal/config"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"short passes through", "hello", "hello"},
		{
			"between cut length and limit passes through",
			strings.Repeat("a", truncatedLen+10),
			strings.Repeat("a", truncatedLen+10),
		},
		{"exactly at limit", strings.Repeat("a", maxMessageLen), strings.Repeat("a", maxMessageLen)},
		{
			"over limit is cut with suffix",
			strings.Repeat("a", maxMessageLen+1),
			strings.Repeat("a", truncatedLen) + truncationSuffix,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text)
			if got != tt.want {
				t.Errorf("Truncate length = %d, want %d", len(got), len(tt.want))
			}
			if utf8.RuneCountInString(got) > maxMessageLen {
				t.Errorf("result exceeds limit: %d runes", utf8.RuneCountInString(got))
			}
		})
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	// Multibyte text must be cut on character boundaries.
	text := strings.Repeat("я", maxMessageLen+100)
	got := Truncate(text)
	if !utf8.ValidString(got) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != truncatedLen+len(truncationSuffix) {
		t.Errorf("rune count = %d, want %d", n, truncatedLen+len(truncationSuffix))
	}
	if !strings.HasSuffix(got, truncationSuffix) {
		t.Error("truncated text is missing the suffix")
	}
}

func TestDisabledBotIsNil(t *testing.T) {
	b := New(config.TelegramConfig{Enabled: false})
	if b != nil {
		t.Fatal("disabled config produced a bot")
	}
	// Sends on a nil bot must be no-ops.
	b.SendMessage("hello")
	b.SendAdminMessage("hello")
}

func TestSendMessagePayload(t *testing.T) {
	received := make(chan sendMessageParams, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:abc/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var p sendMessageParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		received <- p
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b := New(config.TelegramConfig{
		Enabled: true,
		Token:   "123:abc",
		URL:     srv.URL,
		Channel: "@ocean",
	})
	b.SendMessage("hello <b>world</b>")

	select {
	case p := <-received:
		if p.ChatID != "@ocean" {
			t.Errorf("chat_id = %q, want @ocean", p.ChatID)
		}
		if p.Text != "hello <b>world</b>" {
			t.Errorf("text = %q", p.Text)
		}
		if p.ParseMode != "HTML" {
			t.Errorf("parse_mode = %q, want HTML", p.ParseMode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message was never delivered")
	}
}

func TestSendSkipsEmptyChat(t *testing.T) {
	called := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b := New(config.TelegramConfig{Enabled: true, Token: "t", URL: srv.URL})
	b.SendAdminMessage("hello")

	select {
	case <-called:
		t.Fatal("send happened despite empty chat id")
	case <-time.After(100 * time.Millisecond):
	}
}
