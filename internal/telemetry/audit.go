package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter publishes audit_log envelopes, e.g. for rejected operations.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int         `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger.With(zap.String("component", "audit")),
	}
}

// Emit publishes one audit record. userID 0 means anonymous.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID int) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}
	if userID != 0 {
		envelope.UserID = &userID
	}

	e.logger.Debug("audit emit",
		zap.String("level", level),
		zap.String("request_id", requestID),
		zap.Int("user_id", userID),
		zap.String("text", text))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, map[string]string{"x-request-id": requestID}); err != nil {
		e.logger.Warn("audit publish failed", zap.Error(err))
	}
}
