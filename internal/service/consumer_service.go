package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/events"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process event topic and forwards every event
// to the outbound publisher (NATS JetStream in production).
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forward    events.Publisher
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forward events.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forward:    forward,
		logger:     log,
	}
}

// Consume subscribes and returns; messages are handled on a background
// goroutine that stops when ctx is cancelled.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks. Delivery is best effort and a poison message
// must not be redelivered forever.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	event, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error("EVENTS", "Dropping undecodable event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		return
	}

	if cs.forward == nil {
		cs.logger.Debug("EVENTS", "Event consumed", map[string]interface{}{"type": event.EventType()})
		return
	}

	if err := cs.forward.Publish(ctx, event); err != nil {
		cs.logger.Warn("EVENTS", "Failed to forward event", map[string]interface{}{
			"type":       event.EventType(),
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
	}
}
