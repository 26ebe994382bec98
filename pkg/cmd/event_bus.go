package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/shopflow/pkg/channels/gochannel"
	"github.com/dukex/shopflow/pkg/channels/kafka"
	"github.com/dukex/shopflow/pkg/eventbus"
)

const (
	EventBusLocal     = "local"
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// NewEventBus builds the bus for provider. The local bus dispatches inside
// the publishing goroutine; the watermill ones must be started.
func NewEventBus(logger *slog.Logger, provider, serviceName string, brokers []string) (eventbus.Bus, error) {
	switch provider {
	case "", EventBusLocal:
		return eventbus.NewLocal(), nil
	case EventBusGoChannel:
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermill(logger, pub, sub), nil
	case EventBusKafka:
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName, brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermill(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}
