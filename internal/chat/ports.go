package chat

import (
	"context"

	"chat-gateway/internal/models"
)

// Rooms delivers events to room members. Implemented by ws.Hub.
type Rooms interface {
	Broadcast(ctx context.Context, room string, event models.Event, excludeConnID string) error
	SendToUserOutside(ctx context.Context, userID int, room string, event models.Event) error
}

// Presence answers whether a user has at least one open connection.
type Presence interface {
	IsOnline(userID int) bool
}

// MessageStore is the persistence the pipeline needs.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
	UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) (bool, error)
	MarkRead(ctx context.Context, messageID int64, readerID int) (models.Message, bool, error)
	MarkConversationRead(ctx context.Context, readerID, otherID int) ([]int64, error)
	FetchHistory(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error)
}

// Authorizer is satisfied by authz.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, userID int, conv models.Conversation) error
}
