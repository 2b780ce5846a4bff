package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Publisher captures structured audit events synchronously. It is
// append-only and uses the store layer for persistence so tests can swap
// sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

// ChannelPublisher hands events to a background worker over a buffered
// channel so the request path never blocks on audit persistence. Events are
// dropped with a log line when the buffer is full; blood bank audit here is
// operational, not fail-closed.
type ChannelPublisher struct {
	outbox chan<- Event
	logger *slog.Logger
}

func NewChannelPublisher(outbox chan<- Event, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{outbox: outbox, logger: logger}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.outbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", string(event.Action),
				"subject", event.Subject,
			)
		}
	}
	return nil
}
