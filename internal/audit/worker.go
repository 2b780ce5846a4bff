package audit

import "context"

// Worker consumes audit events from a channel and persists them. It keeps
// background processing testable without wiring queue implementations.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run drains the inbox until ctx is cancelled. Remaining buffered events are
// flushed before returning so shutdown does not lose accepted events.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.inbox:
			_ = w.store.Append(context.Background(), event)
		default:
			return
		}
	}
}
