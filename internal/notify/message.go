package notify

import "strings"

// Event types carried on Message.Event.
const (
	EventCloseSummary = "close_summary"
	EventAction       = "action"
	EventTxSettled    = "tx_settled"
	EventError        = "error"
)

// Field is one labelled value in a block.
type Field struct {
	Label string
	Value string
}

// Block is one detail section of a message.
type Block struct {
	Heading string
	Fields  []Field
	Text    string
}

// Message is a structured notification: a title plus detail blocks. Senders
// render it for their channel.
type Message struct {
	Event   string
	PoolID  string
	Title   string
	Blocks  []Block
	Warning string
}

// Plain renders the blocks as text, passing headings through bold.
func (m Message) Plain(bold func(string) string) string {
	var b strings.Builder
	if m.Warning != "" {
		b.WriteString("⚠ ")
		b.WriteString(m.Warning)
		b.WriteString("\n")
	}
	for i, blk := range m.Blocks {
		if i > 0 || m.Warning != "" {
			b.WriteString("\n")
		}
		if blk.Heading != "" {
			b.WriteString(bold(blk.Heading))
			b.WriteString("\n")
		}
		for _, f := range blk.Fields {
			b.WriteString(f.Label)
			b.WriteString(": ")
			b.WriteString(f.Value)
			b.WriteString("\n")
		}
		if blk.Text != "" {
			b.WriteString(blk.Text)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
