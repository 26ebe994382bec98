package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MessagesTopic is the single watermill topic all events travel on; the event
// topic is carried in message metadata.
const MessagesTopic = "shopflow.events"

const EventTopicMetadataKey = "event_type"

// Watermill is a Bus over a watermill publisher and subscriber, e.g. Kafka
// across processes or gochannel in tests. Handlers run synchronously in the
// consumer goroutine; a failing handler nacks the message.
type Watermill struct {
	logger     *slog.Logger
	publisher  message.Publisher
	subscriber message.Subscriber

	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewWatermill(logger *slog.Logger, pub message.Publisher, sub message.Subscriber) *Watermill {
	return &Watermill{
		logger:     logger.With("module", "eventbus"),
		publisher:  pub,
		subscriber: sub,
		handlers:   map[Topic][]Handler{},
	}
}

func (w *Watermill) Publish(ctx context.Context, event Event) error {
	topic := event.Topic()
	if !topic.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(EventTopicMetadataKey, string(topic))

	err = w.publisher.Publish(MessagesTopic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	return nil
}

func (w *Watermill) Subscribe(topic Topic, handler Handler) error {
	if !topic.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[topic] = append(w.handlers[topic], handler)

	return nil
}

// Start consumes messages until ctx is done. Handlers may be added after
// Start.
func (w *Watermill) Start(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, MessagesTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", MessagesTopic, err)
	}

	go func() {
		for msg := range messages {
			w.handle(ctx, msg)
		}
	}()

	return nil
}

func (w *Watermill) handle(ctx context.Context, msg *message.Message) {
	topic := Topic(msg.Metadata.Get(EventTopicMetadataKey))

	w.mu.RLock()
	handlers := slices.Clone(w.handlers[topic])
	w.mu.RUnlock()

	if len(handlers) == 0 {
		msg.Ack()

		return
	}

	event, err := NewPayload(topic)
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping message with unknown topic", "topic", topic, "message_id", msg.UUID)
		msg.Ack()

		return
	}

	err = json.Unmarshal(msg.Payload, event)
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping undecodable message", "topic", topic, "message_id", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	err = dispatch(ctx, handlers, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Event handler failed", "topic", topic, "message_id", msg.UUID, "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (w *Watermill) Close() error {
	err := w.publisher.Close()
	if err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	return w.subscriber.Close()
}
