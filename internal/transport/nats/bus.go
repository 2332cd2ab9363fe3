package nats

import "github.com/nats-io/nats.go"

// Bus adapts a core NATS connection to the orchestrator's Publisher
// interface. Delivery is at-most-once.
type Bus struct {
	nc *nats.Conn
}

func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

func (b *Bus) Publish(topic string, data []byte) error {
	return b.nc.Publish(topic, data)
}
