package bus

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// New creates an EventBus based on configuration.
// Supported types: "channel" (Community), "nats" (Pro).
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		bufferSize := cfg.ChannelBufferSize
		if bufferSize == 0 {
			bufferSize = 100
		}
		return NewChannelBus(bufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported bus type: %s", cfg.Type)
	}
}
