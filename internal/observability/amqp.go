package observability

import (
	"context"

	"go.uber.org/zap"
)

// Publisher is the broker side of Events, implemented by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Events fans out connection lifecycle envelopes to the broker. A nil
// *Events, or one without a publisher, drops everything.
type Events struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewEvents(publisher Publisher, logger *zap.Logger) *Events {
	return &Events{publisher: publisher, logger: logger.With(zap.String("component", "events"))}
}

// Publish never fails the caller; broker errors are counted and logged.
func (e *Events) Publish(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, routingKey, envelope, headers); err != nil {
		IncAMQPPublishError()
		e.logger.Warn("event publish failed",
			zap.String("routing_key", routingKey),
			zap.String("event_name", envelope.EventName),
			zap.Error(err))
	}
}
