// Package eventbus carries shop events between raw event sources, async
// events and trigger hooks over a closed set of typed topics.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrUnknownTopic = errors.New("unknown event topic")

// Event is a typed payload published on its topic.
type Event interface {
	Topic() Topic
}

type Handler func(ctx context.Context, event Event) error

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	// Subscribe registers a handler. Handlers of one topic run in
	// registration order.
	Subscribe(topic Topic, handler Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Local dispatches synchronously within the publishing goroutine.
type Local struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewLocal() *Local {
	return &Local{handlers: map[Topic][]Handler{}}
}

func (l *Local) Subscribe(topic Topic, handler Handler) error {
	if !topic.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers[topic] = append(l.handlers[topic], handler)

	return nil
}

// Publish calls every handler of the event's topic, even when one fails, and
// returns the joined handler errors.
func (l *Local) Publish(ctx context.Context, event Event) error {
	topic := event.Topic()
	if !topic.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	l.mu.RLock()
	handlers := slices.Clone(l.handlers[topic])
	l.mu.RUnlock()

	return dispatch(ctx, handlers, event)
}

// Subscribed reports whether any handler listens on topic.
func (l *Local) Subscribed(topic Topic) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.handlers[topic]) > 0
}

func (l *Local) Close() error {
	return nil
}

func dispatch(ctx context.Context, handlers []Handler, event Event) error {
	var errs []error

	for _, h := range handlers {
		err := h(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
