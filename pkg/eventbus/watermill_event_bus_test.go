package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/pkg/channels/gochannel"
	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.EventReceived, 1)

	err = bus.Handle(events.EventReceivedEvent, func(ctx context.Context, event any) error {
		typed, ok := event.(*events.EventReceived)
		require.True(t, ok)
		received <- typed

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	published := events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, "org-1"),
		EventID:   "evt-1",
		EventKind: "sms.inbound",
	}

	require.NoError(t, bus.Publish(ctx, "org-1", published))

	select {
	case got := <-received:
		assert.Equal(t, "evt-1", got.EventID)
		assert.Equal(t, "org-1", got.OrgID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	handled := make(chan struct{}, 1)

	require.NoError(t, bus.Handle(events.RunCompletedEvent, func(ctx context.Context, event any) error {
		handled <- struct{}{}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for run.failed; it must be dropped, then the
	// following run.completed still goes through.
	require.NoError(t, bus.Publish(ctx, "org-1", events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, "org-1"),
		RunID:     "run-1",
	}))
	require.NoError(t, bus.Publish(ctx, "org-1", events.RunCompleted{
		BaseEvent: events.NewBaseEvent(events.RunCompletedEvent, "org-1"),
		RunID:     "run-2",
	}))

	select {
	case <-handled:
	case <-ctx.Done():
		t.Fatal("timed out waiting for handled event")
	}
}
