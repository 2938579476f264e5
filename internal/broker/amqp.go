package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

// AMQPBroker implements Publisher and Consumer over a RabbitMQ connection.
// One instance is shared by every RPC call; it is injected, never ambient.
type AMQPBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  logger.Logger
}

// Dial connects to the broker and opens the channel used for publishing and
// topology declaration.
func Dial(url string, log logger.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &AMQPBroker{conn: conn, ch: ch, log: log}, nil
}

// DeclareTopology declares the request exchange, reply exchange and reply
// queue for each RPC endpoint, including the dead-letter pair when the
// endpoint names one.
func (b *AMQPBroker) DeclareTopology(endpoints ...config.RPCEndpoint) error {
	for _, ep := range endpoints {
		for _, ex := range []string{ep.Exchange, ep.ReplyExchange} {
			if err := b.ch.ExchangeDeclare(ex, "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %q: %w", ex, err)
			}
		}

		var args amqp.Table
		if ep.DeadLetter != "" {
			if err := b.ch.ExchangeDeclare(ep.DeadLetter, "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare dlx %q: %w", ep.DeadLetter, err)
			}
			dlq := ep.ReplyQueue + "_dlq"
			if _, err := b.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare dlq %q: %w", dlq, err)
			}
			if err := b.ch.QueueBind(dlq, "", ep.DeadLetter, false, nil); err != nil {
				return fmt.Errorf("bind dlq %q: %w", dlq, err)
			}
			args = amqp.Table{"x-dead-letter-exchange": ep.DeadLetter}
		}

		if _, err := b.ch.QueueDeclare(ep.ReplyQueue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %q: %w", ep.ReplyQueue, err)
		}
		if err := b.ch.QueueBind(ep.ReplyQueue, ep.ReplyRoutingKey, ep.ReplyExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q: %w", ep.ReplyQueue, err)
		}

		b.log.Info("broker topology declared", map[string]interface{}{
			"exchange":   ep.Exchange,
			"replyQueue": ep.ReplyQueue,
		})
	}
	return nil
}

// Publish sends one message to the given exchange.
func (b *AMQPBroker) Publish(ctx context.Context, p Publishing) error {
	return b.ch.PublishWithContext(ctx, p.Exchange, p.RoutingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: p.CorrelationID,
		ReplyTo:       p.ReplyTo,
		Body:          p.Body,
	})
}

// Consume opens a consume loop on queue and adapts deliveries to the broker
// contract. Messages are acked on receipt; correlation matching happens in
// the rpc dispatcher.
func (b *AMQPBroker) Consume(ctx context.Context, queue string) (<-chan Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp consumer channel: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqp consume %q: %w", queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- Delivery{CorrelationID: d.CorrelationId, Body: d.Body}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close tears down the channel and connection.
func (b *AMQPBroker) Close() error {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
