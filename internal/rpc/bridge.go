package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/broker"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/metrics"
)

// Bridge presents one publish/consume exchange as a single call with a
// result, bounded by a deadline. A call makes exactly one attempt: it
// succeeds, times out, or fails at the broker. Once issued it runs to
// delivery or deadline; caller cancellation is not propagated into the race.
type Bridge struct {
	publisher broker.Publisher
	registry  *Registry
	log       logger.Logger
}

func NewBridge(publisher broker.Publisher, registry *Registry, log logger.Logger) *Bridge {
	return &Bridge{
		publisher: publisher,
		registry:  registry,
		log:       log.WithFields(map[string]interface{}{"component": "rpc-bridge"}),
	}
}

// Call publishes payload to the endpoint's exchange tagged with a fresh
// correlation id and waits for the matching reply or the deadline, whichever
// settles first. The loser of that race is a no-op; no timer or registry
// entry outlives the call.
func (b *Bridge) Call(ctx context.Context, ep config.RPCEndpoint, payload interface{}, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	id := uuid.NewString()
	w := b.registry.Register(id)
	start := time.Now()

	err = b.publisher.Publish(ctx, broker.Publishing{
		Exchange:      ep.Exchange,
		RoutingKey:    ep.RoutingKey,
		CorrelationID: id,
		ReplyTo:       ep.ReplyExchange,
		Body:          body,
	})
	if err != nil {
		b.registry.Expire(id)
		metrics.RPCCallsTotal.WithLabelValues(ep.Exchange, "broker_error").Inc()
		b.log.Error("publish failed", map[string]interface{}{
			"exchange":      ep.Exchange,
			"correlationId": id,
			"error":         err.Error(),
		})
		return nil, apperrors.NewBrokerError(err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out Outcome
	select {
	case out = <-w.Done():
	case <-timer.C:
		// If Expire loses here, a delivery settled the entry between the
		// timer firing and this call; its outcome is already buffered.
		b.registry.Expire(id)
		out = <-w.Done()
	}

	metrics.RPCCallDuration.WithLabelValues(ep.Exchange).Observe(time.Since(start).Seconds())

	if out.TimedOut {
		metrics.RPCCallsTotal.WithLabelValues(ep.Exchange, "timeout").Inc()
		b.log.Warn("call timed out", map[string]interface{}{
			"exchange":      ep.Exchange,
			"correlationId": id,
			"timeoutMs":     timeout.Milliseconds(),
		})
		return nil, apperrors.NewRPCTimeout(ep.Exchange)
	}

	metrics.RPCCallsTotal.WithLabelValues(ep.Exchange, "ok").Inc()
	return out.Payload, nil
}
