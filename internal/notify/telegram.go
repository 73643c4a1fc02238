package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID. It uses a default HTTP client with a 10-second timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(),
	}
}

// WithAPIBase points the sender at a different Bot API host.
func (t *TelegramSender) WithAPIBase(base string) *TelegramSender {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

// Send posts the message to the configured chat using sendMessage. The title
// and block headings are rendered in bold.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	bold := func(s string) string { return "*" + s + "*" }

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       bold(msg.Title) + "\n" + msg.Plain(bold),
		"parse_mode": "Markdown",
	}
	return postJSON(ctx, t.client, "telegram", url, payload)
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
