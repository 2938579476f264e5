// Package broker defines the messaging contracts the RPC bridge is built on
// and the AMQP implementation used in production. The bridge and the tests
// only ever see the Publisher and Consumer interfaces.
package broker

import "context"

// Publishing is an outbound message. CorrelationID ties the eventual response
// back to the pending call; ReplyTo names the exchange the remote service
// should publish that response to.
type Publishing struct {
	Exchange      string
	RoutingKey    string
	CorrelationID string
	ReplyTo       string
	Body          []byte
}

// Delivery is an inbound message from a reply queue.
type Delivery struct {
	CorrelationID string
	Body          []byte
}

// Publisher publishes messages to a named exchange.
type Publisher interface {
	Publish(ctx context.Context, p Publishing) error
}

// Consumer opens a consume loop on a named queue. The returned channel is
// closed when ctx is cancelled or the underlying connection drops.
type Consumer interface {
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)
}
