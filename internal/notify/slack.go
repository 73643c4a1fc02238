package notify

import (
	"context"
	"net/http"
	"strings"
)

// SlackSender delivers notifications to a Slack incoming webhook as Block
// Kit blocks.
type SlackSender struct {
	webhookURL string
	client     *http.Client
}

// NewSlackSender creates a SlackSender for the given webhook URL.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{webhookURL: webhookURL, client: newHTTPClient()}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// slackMaxFields is the Block Kit limit on fields per section.
const slackMaxFields = 10

// Send posts msg to the webhook.
func (s *SlackSender) Send(ctx context.Context, msg Message) error {
	return postJSON(ctx, s.client, "slack", s.webhookURL, slackBlocks(msg))
}

// Name returns the sender identifier.
func (s *SlackSender) Name() string {
	return "slack"
}

func slackBlocks(msg Message) slackPayload {
	p := slackPayload{Text: msg.Title}
	p.Blocks = append(p.Blocks, slackBlock{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: msg.Title},
	})
	if msg.Warning != "" {
		p.Blocks = append(p.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: ":warning: *" + msg.Warning + "*"},
		})
	}

	for _, blk := range msg.Blocks {
		if blk.Heading != "" || blk.Text != "" {
			var text strings.Builder
			if blk.Heading != "" {
				text.WriteString("*" + blk.Heading + "*")
			}
			if blk.Text != "" {
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(blk.Text)
			}
			p.Blocks = append(p.Blocks, slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: text.String()},
			})
		}
		for start := 0; start < len(blk.Fields); start += slackMaxFields {
			end := min(start+slackMaxFields, len(blk.Fields))
			fields := make([]slackText, 0, end-start)
			for _, f := range blk.Fields[start:end] {
				fields = append(fields, slackText{Type: "mrkdwn", Text: "*" + f.Label + "*\n" + f.Value})
			}
			p.Blocks = append(p.Blocks, slackBlock{Type: "section", Fields: fields})
		}
	}

	if msg.PoolID != "" {
		p.Blocks = append(p.Blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "pool `" + msg.PoolID + "`"}},
		})
	}
	return p
}
