package rpc

import (
	"context"
	"fmt"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/broker"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/metrics"
)

// Dispatcher owns the reply-queue consumer loops and demultiplexes inbound
// responses to the registry by correlation id. Messages whose id has no
// pending entry (already settled or never registered) are dropped.
type Dispatcher struct {
	consumer broker.Consumer
	registry *Registry
	log      logger.Logger
}

func NewDispatcher(consumer broker.Consumer, registry *Registry, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		registry: registry,
		log:      log.WithFields(map[string]interface{}{"component": "rpc-dispatcher"}),
	}
}

// Start opens a consume loop per reply queue and dispatches until ctx is
// cancelled. It fails fast if any queue cannot be consumed.
func (d *Dispatcher) Start(ctx context.Context, queues ...string) error {
	for _, q := range queues {
		deliveries, err := d.consumer.Consume(ctx, q)
		if err != nil {
			return fmt.Errorf("consume %q: %w", q, err)
		}
		go d.dispatch(q, deliveries)
	}
	return nil
}

func (d *Dispatcher) dispatch(queue string, deliveries <-chan broker.Delivery) {
	for delivery := range deliveries {
		if d.registry.Complete(delivery.CorrelationID, delivery.Body) {
			continue
		}
		metrics.RPCDroppedReplies.Inc()
		d.log.Debug("dropping reply with no pending call", map[string]interface{}{
			"queue":         queue,
			"correlationId": delivery.CorrelationID,
		})
	}
	d.log.Info("reply consumer closed", map[string]interface{}{"queue": queue})
}
