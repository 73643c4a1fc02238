// Package notify delivers structured pool summaries to operator channels
// (Slack, Telegram, Discord). Delivery failures are logged and never stop the
// caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one message.
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "slack").
	Name() string
}

// Notifier dispatches messages to one or more Senders. It maintains a set
// of allowed event types; Notify only forwards messages whose event type is in
// the allowed set.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends msg to all senders if its event type is allowed. The returned
// error joins individual sender failures, which are also logged; one failing
// sender does not stop delivery to the rest.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", msg.Event),
		)
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("pool", msg.PoolID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", msg.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
