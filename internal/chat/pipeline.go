package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

// MaxContentLength bounds message content, in characters.
const MaxContentLength = 4000

// Pipeline persists messages and fans them out. Within one room, persist and
// broadcast happen under the room's lock so clients see commit order.
type Pipeline struct {
	store    MessageStore
	authz    Authorizer
	rooms    Rooms
	presence Presence
	typing   *TypingTracker
	locks    *keyedMutex
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewPipeline(store MessageStore, authz Authorizer, rooms Rooms, presence Presence, typing *TypingTracker, logger *zap.Logger) *Pipeline {
	if typing == nil {
		typing = NewTypingTracker()
	}
	return &Pipeline{
		store:    store,
		authz:    authz,
		rooms:    rooms,
		presence: presence,
		typing:   typing,
		locks:    newKeyedMutex(),
		logger:   logger.With(zap.String("component", "pipeline")),
		tracer:   otel.Tracer("chat-gateway/chat"),
	}
}

// Typing exposes the tracker so the hub can drop pruned rooms.
func (p *Pipeline) Typing() *TypingTracker { return p.typing }

func (p *Pipeline) start(ctx context.Context, op, room string, userID int) (context.Context, func(*error)) {
	begin := time.Now()
	ctx, span := p.tracer.Start(ctx, "chat."+op, trace.WithAttributes(
		attribute.String("chat.room", room),
		attribute.Int("chat.user_id", userID),
	))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, errs.Code(*errp))
		}
		span.End()
		observability.ObservePipeline(op, begin)
	}
}

// Authorize checks access to conv, counting denials.
func (p *Pipeline) Authorize(ctx context.Context, userID int, conv models.Conversation) error {
	err := p.authz.Authorize(ctx, userID, conv)
	if errors.Is(err, errs.ErrForbidden) {
		observability.IncAuthzDenied(string(conv.Kind))
	}
	return err
}

// Send validates, authorizes, persists and broadcasts a message. For a
// private conversation whose recipient is online the message is moved to
// delivered before Send returns, and the recipient's connections outside the
// room get it on their personal channel.
func (p *Pipeline) Send(ctx context.Context, senderID int, conv models.Conversation, content string, msgType models.MessageType) (msg models.Message, err error) {
	ctx, done := p.start(ctx, "send", conv.RoomKey(), senderID)
	defer done(&err)

	if msgType == "" {
		msgType = models.TypeText
	}
	if err := validateContent(content, msgType); err != nil {
		return models.Message{}, err
	}
	if err := p.Authorize(ctx, senderID, conv); err != nil {
		return models.Message{}, err
	}

	room := conv.RoomKey()
	unlock := p.locks.Lock(room)
	defer unlock()

	draft := models.Message{SenderID: senderID, Content: content, Type: msgType}
	recipient := 0
	if conv.IsGroup() {
		draft.GroupID = conv.GroupID
	} else {
		recipient = conv.Peer(senderID)
		draft.ReceiverID = recipient
	}

	msg, err = p.store.SaveMessage(ctx, draft)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessage(string(conv.Kind))
	observability.IncStatusTransition(string(models.StatusSent))

	p.broadcast(ctx, room, models.Event{Name: models.EventNewMessage, Data: msg})

	if recipient == 0 || !p.presence.IsOnline(recipient) {
		return msg, nil
	}

	ok, err := p.store.UpdateStatus(ctx, msg.ID, models.StatusDelivered)
	switch {
	case err != nil:
		// The message is durable and already broadcast; it stays sent.
		p.logger.Warn("delivered transition failed",
			zap.Int64("message_id", msg.ID), zap.String("room", room), zap.Error(err))
	case ok:
		msg.Status = models.StatusDelivered
		observability.IncStatusTransition(string(models.StatusDelivered))
		p.broadcast(ctx, room, models.Event{
			Name: models.EventMessageStatus,
			Data: models.MessageStatusUpdate{MessageID: msg.ID, Status: models.StatusDelivered},
		})
	}

	if err := p.rooms.SendToUserOutside(ctx, recipient, room, models.Event{Name: models.EventNewMessage, Data: msg}); err != nil {
		p.logger.Warn("personal channel push failed",
			zap.Int("user_id", recipient), zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	return msg, nil
}

// MarkRead marks messageID read when readerID is its receiver and announces
// it to the room. Anything else is a silent no-op.
func (p *Pipeline) MarkRead(ctx context.Context, messageID int64, readerID int) (changed bool, err error) {
	ctx, done := p.start(ctx, "mark_read", "", readerID)
	defer done(&err)

	if messageID <= 0 {
		return false, fmt.Errorf("message_id is required: %w", errs.ErrValidation)
	}
	msg, ok, err := p.store.MarkRead(ctx, messageID, readerID)
	if err != nil || !ok {
		return false, err
	}
	observability.IncStatusTransition(string(models.StatusRead))

	room := msg.Conversation().RoomKey()
	unlock := p.locks.Lock(room)
	defer unlock()
	p.broadcast(ctx, room, models.Event{
		Name: models.EventMessageStatus,
		Data: models.MessageStatusUpdate{MessageID: msg.ID, Status: models.StatusRead},
	})
	return true, nil
}

// MarkConversationRead marks everything otherID sent to readerID as read and
// tells otherID, one status event per message on their personal channel.
func (p *Pipeline) MarkConversationRead(ctx context.Context, readerID, otherID int) (ids []int64, err error) {
	ctx, done := p.start(ctx, "mark_conversation_read", models.Private(readerID, otherID).RoomKey(), readerID)
	defer done(&err)

	ids, err = p.store.MarkConversationRead(ctx, readerID, otherID)
	if err != nil {
		return nil, err
	}
	personal := models.PersonalRoom(otherID)
	for _, id := range ids {
		observability.IncStatusTransition(string(models.StatusRead))
		p.broadcast(ctx, personal, models.Event{
			Name: models.EventMessageStatus,
			Data: models.MessageStatusUpdate{MessageID: id, Status: models.StatusRead},
		})
	}
	return ids, nil
}

// History returns the newest limit messages of conv, oldest first. Callers
// authorize first.
func (p *Pipeline) History(ctx context.Context, conv models.Conversation, limit int) (msgs []models.Message, err error) {
	ctx, done := p.start(ctx, "history", conv.RoomKey(), 0)
	defer done(&err)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", errs.ErrValidation)
	}
	return p.store.FetchHistory(ctx, conv, limit)
}

// SetTyping authorizes like Send, records the state and, when it changed,
// tells the rest of the room. excludeConnID is the sender's connection.
func (p *Pipeline) SetTyping(ctx context.Context, userID int, conv models.Conversation, isTyping bool, excludeConnID string) (err error) {
	ctx, done := p.start(ctx, "typing", conv.RoomKey(), userID)
	defer done(&err)

	if err := p.Authorize(ctx, userID, conv); err != nil {
		return err
	}
	changed, users := p.typing.SetTyping(conv, userID, isTyping)
	if changed {
		p.broadcastTyping(ctx, conv, userID, isTyping, users, excludeConnID)
	}
	return nil
}

// ReleaseTyping clears userID from every room it no longer backs with a
// joined connection and broadcasts the new state. Used on disconnect.
func (p *Pipeline) ReleaseTyping(ctx context.Context, userID int, stillJoined func(room string) bool) {
	for _, conv := range p.typing.RoomsOf(userID) {
		if stillJoined != nil && stillJoined(conv.RoomKey()) {
			continue
		}
		if changed, users := p.typing.Clear(conv, userID); changed {
			p.broadcastTyping(ctx, conv, userID, false, users, "")
		}
	}
}

func (p *Pipeline) broadcastTyping(ctx context.Context, conv models.Conversation, userID int, isTyping bool, users []int, excludeConnID string) {
	event := models.Event{Name: models.EventTypingStatus}
	status := models.TypingStatus{UserID: userID, IsTyping: isTyping, Users: users}
	if conv.IsGroup() {
		event.Name = models.EventGroupTyping
		status.GroupID = conv.GroupID
	}
	event.Data = status
	if err := p.rooms.Broadcast(ctx, conv.RoomKey(), event, excludeConnID); err != nil {
		p.logger.Warn("typing broadcast failed", zap.String("room", conv.RoomKey()), zap.Error(err))
	}
}

func (p *Pipeline) broadcast(ctx context.Context, room string, event models.Event) {
	if err := p.rooms.Broadcast(ctx, room, event, ""); err != nil {
		p.logger.Warn("broadcast failed", zap.String("room", room), zap.String("event", event.Name), zap.Error(err))
	}
}

func validateContent(content string, msgType models.MessageType) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required: %w", errs.ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("content exceeds %d characters: %w", MaxContentLength, errs.ErrValidation)
	}
	if !msgType.Valid() {
		return fmt.Errorf("unknown message type %q: %w", msgType, errs.ErrValidation)
	}
	return nil
}
