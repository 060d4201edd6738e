// Package notify provides a multi-channel notification system. Alerts
// are dispatched to all registered senders (Telegram, Discord, email);
// channels without credentials are simply never registered.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Senders returns the number of registered channels.
func (n *Notifier) Senders() int {
	return len(n.senders)
}

// Dispatch delivers the notification to every sender. A failing sender
// does not prevent delivery to the remaining ones. Dispatch succeeds
// when no senders are registered or at least one sender delivered; it
// returns an error only when every registered sender failed, so the
// caller can retry the whole alert later.
func (n *Notifier) Dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	delivered := 0
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		delivered++
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if delivered == 0 {
		return fmt.Errorf("notify: all %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
