// Package notify pushes engine lifecycle alerts (start, stop, hedge fired) to
// operator channels. Delivery is best-effort and fully decoupled from the
// decision thread.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// sendTimeout bounds a single delivery attempt across all channels.
const sendTimeout = 10 * time.Second

// Sender delivers one formatted alert to a single channel.
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Notifier fans alerts out to the configured senders, filtered by event type.
// Publish never blocks the caller; delivery happens on a short-lived goroutine.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. Only events listed in
// events pass the filter; an empty list allows everything.
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

// Publish queues an alert for async delivery. Filtered events are dropped
// silently at debug level.
func (n *Notifier) Publish(event, message string) {
	if len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("event filtered out", slog.String("event", event))
		return
	}

	text := "[" + strings.ToUpper(event) + "] " + message
	go n.dispatch(event, text)
}

// dispatch sends to every channel. One failing sender does not stop the rest.
func (n *Notifier) dispatch(event, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	for _, s := range n.senders {
		if err := s.Send(ctx, text); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()))
			continue
		}
		n.logger.Debug("alert delivered",
			slog.String("sender", s.Name()),
			slog.String("event", event))
	}
}
