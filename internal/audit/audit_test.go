package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), Event{
		Action:  ActionDonorRegistered,
		Subject: "donor-1",
	}))

	events := store.All()
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	outbox := make(chan Event, 1)
	pub := NewChannelPublisher(outbox, logger)

	require.NoError(t, pub.Emit(context.Background(), Event{Subject: "a"}))
	// Buffer full; the second emit drops instead of blocking the request.
	require.NoError(t, pub.Emit(context.Background(), Event{Subject: "b"}))

	assert.Len(t, outbox, 1)
}

func TestWorkerDrainsAndFlushes(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox <- Event{Action: ActionUnitCollected, Subject: "unit-1"}
	inbox <- Event{Action: ActionRequestApproved, Subject: "req-1"}

	require.Eventually(t, func() bool {
		return len(store.All()) == 2
	}, time.Second, 10*time.Millisecond)

	// Events buffered at shutdown still land in the store.
	inbox <- Event{Action: ActionRequestRejected, Subject: "req-2"}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, store.All(), 3)
}

func TestListBySubject(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Event{Action: ActionRequestCreated, Subject: "req-1"}))
	require.NoError(t, store.Append(ctx, Event{Action: ActionRequestApproved, Subject: "req-1"}))
	require.NoError(t, store.Append(ctx, Event{Action: ActionRequestCreated, Subject: "req-2"}))

	events, err := store.ListBySubject(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionRequestApproved, events[1].Action)
}
