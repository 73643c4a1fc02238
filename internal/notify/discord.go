package notify

import (
	"context"
	"net/http"
)

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses a
// default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}
}

// Send posts the message to the Discord webhook using Discord markdown.
func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	bold := func(s string) string { return "**" + s + "**" }
	content := bold(msg.Title) + "\n" + msg.Plain(bold)
	if len(content) > 2000 {
		content = content[:1997] + "..."
	}
	// Discord returns 204 No Content on success.
	return postJSON(ctx, d.client, "discord", d.webhookURL, map[string]string{"content": content})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
