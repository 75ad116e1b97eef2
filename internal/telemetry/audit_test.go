package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"chat-gateway/internal/mocks"
	"chat-gateway/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.EventType == "audit_log" &&
			env.Service == "chat-gateway" &&
			env.UserID != nil && *env.UserID == 5 &&
			env.Payload.Text == "denied"
	}), map[string]string{"x-request-id": "r1"}).Return(nil).Once()

	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "chat-gateway", "test", zap.NewNop())
	emitter.Emit(context.Background(), "WARN", "denied", "r1", 5)

	pub.AssertExpectations(t)
}

func TestAuditEmitterAnonymousAndNil(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.UserID == nil
	}), mock.Anything).Return(nil).Once()

	telemetry.NewAuditEmitter(pub, "audit.chat", "svc", "test", zap.NewNop()).
		Emit(context.Background(), "INFO", "hello", "r2", 0)
	pub.AssertExpectations(t)

	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() { emitter.Emit(context.Background(), "INFO", "x", "r", 1) })
}
