package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/events"
)

type forwardRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *forwardRecorder) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *forwardRecorder) all() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func TestConsumer_ForwardsBusEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fwd := &forwardRecorder{}
	consumer := NewConsumerService(pubSub, "zara.events", fwd, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	bus := events.NewBus(pubSub, "zara.events")
	require.NoError(t, bus.Publish(ctx, events.TurnCompleted{TurnID: "t-9", Outcome: "text", OccurredAt: time.Now()}))
	require.NoError(t, pubSub.Publish("zara.events", message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	require.NoError(t, bus.Publish(ctx, events.SessionEvent{Type: events.TypeSessionClosed, SessionID: "s-1", OccurredAt: time.Now()}))

	require.Eventually(t, func() bool { return len(fwd.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	got := fwd.all()
	assert.Equal(t, events.TypeTurnCompleted, got[0].EventType())
	assert.Equal(t, "t-9", got[0].Payload()["turn_id"])
	assert.Equal(t, events.TypeSessionClosed, got[1].EventType())
}
