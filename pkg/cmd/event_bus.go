package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/carbonlens/carbonflow/pkg/channels/gochannel"
	"github.com/carbonlens/carbonflow/pkg/channels/kafka"
	"github.com/carbonlens/carbonflow/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. "kafka" requires
// KAFKA_BROKERS; "memory" keeps events in process, which is enough for a
// single-instance deployment.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "carbonflow")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "memory", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("unsupported event bus provider: " + provider)
	}
}
