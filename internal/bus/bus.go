package bus

import (
	"fmt"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// New creates a new event bus based on configuration.
// "channel" is in-process; "nats" and "kafka" fan events out to other
// services.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	case "kafka":
		return NewKafkaBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
