package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

// MessageRepository persists private and group messages.
type MessageRepository interface {
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
	UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) (bool, error)
	MarkRead(ctx context.Context, messageID int64, readerID int) (models.Message, bool, error)
	MarkConversationRead(ctx context.Context, readerID, otherID int) ([]int64, error)
	FetchHistory(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrPersistence, err)
}

const savePrivateMessage = `WITH inserted AS (
        INSERT INTO messages (sender_id, receiver_id, content, message_type, status)
        VALUES ($1, $2, $3, $4, 'sent')
        RETURNING message_id, sender_id, receiver_id, content, message_type, sent_at, status
    )
    SELECT i.message_id, i.sender_id, i.receiver_id, i.content, i.message_type, i.sent_at, i.status,
        COALESCE(u.username, '') AS sender_name
    FROM inserted i LEFT JOIN user_db u ON u.id = i.sender_id`

const saveGroupMessage = `WITH inserted AS (
        INSERT INTO travel_group_messages (group_id, sender_id, content, message_type, status)
        VALUES ($1, $2, $3, $4, 'sent')
        RETURNING message_id, group_id, sender_id, content, message_type, sent_at, status
    )
    SELECT i.message_id, i.group_id, i.sender_id, i.content, i.message_type, i.sent_at, i.status,
        COALESCE(u.username, '') AS sender_name
    FROM inserted i LEFT JOIN user_db u ON u.id = i.sender_id`

// SaveMessage stores msg with status sent. The id and sent_at come from the
// database; whatever the caller put there is ignored.
func (r *MessageRepo) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.Type == "" {
		msg.Type = models.TypeText
	}

	var saved models.Message
	var err error
	if msg.GroupID != 0 {
		err = r.db.GetContext(ctx, &saved, saveGroupMessage, msg.GroupID, msg.SenderID, msg.Content, msg.Type)
	} else {
		err = r.db.GetContext(ctx, &saved, savePrivateMessage, msg.SenderID, msg.ReceiverID, msg.Content, msg.Type)
	}
	if err != nil {
		return models.Message{}, storageErr("save message", err)
	}
	return saved, nil
}

// UpdateStatus moves a private message forward to status. It reports false
// when the row is missing or already at or past status.
func (r *MessageRepo) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("status %q: %w", status, errs.ErrValidation)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$2 WHERE message_id=$1 AND status = ANY($3)`,
		messageID, status, pq.Array(status.Predecessors()))
	if err != nil {
		return false, storageErr("update status", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("update status", err)
	}
	return count > 0, nil
}

// MarkRead marks a private message read when readerID is its receiver. The
// updated row is returned; ok is false when nothing changed.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int64, readerID int) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET status='read'
        WHERE message_id=$1 AND receiver_id=$2 AND status <> 'read'
        RETURNING message_id, sender_id, receiver_id, content, message_type, sent_at, status`, messageID, readerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, nil
	}
	if err != nil {
		return models.Message{}, false, storageErr("mark read", err)
	}
	return msg, true, nil
}

// MarkConversationRead marks every unread message from otherID to readerID
// read and returns their ids in ascending order.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, readerID, otherID int) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `UPDATE messages SET status='read'
        WHERE receiver_id=$1 AND sender_id=$2 AND status <> 'read'
        RETURNING message_id`, readerID, otherID)
	if err != nil {
		return nil, storageErr("mark conversation read", err)
	}
	slices.Sort(ids)
	return ids, nil
}

const privateHistory = `SELECT * FROM (
        SELECT m.message_id, m.sender_id, m.receiver_id, m.content, m.message_type, m.sent_at, m.status,
            COALESCE(u.username, '') AS sender_name
        FROM messages m LEFT JOIN user_db u ON u.id = m.sender_id
        WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1)
        ORDER BY m.sent_at DESC, m.message_id DESC
        LIMIT $3
    ) recent ORDER BY sent_at ASC, message_id ASC`

const groupHistory = `SELECT * FROM (
        SELECT m.message_id, m.group_id, m.sender_id, m.content, m.message_type, m.sent_at, m.status,
            COALESCE(u.username, '') AS sender_name
        FROM travel_group_messages m LEFT JOIN user_db u ON u.id = m.sender_id
        WHERE m.group_id=$1
        ORDER BY m.sent_at DESC, m.message_id DESC
        LIMIT $2
    ) recent ORDER BY sent_at ASC, message_id ASC`

// FetchHistory returns the newest limit messages of conv, oldest first.
func (r *MessageRepo) FetchHistory(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	var err error
	if conv.IsGroup() {
		err = r.db.SelectContext(ctx, &msgs, groupHistory, conv.GroupID, limit)
	} else {
		low, high := conv.Participants()
		err = r.db.SelectContext(ctx, &msgs, privateHistory, low, high, limit)
	}
	if err != nil {
		return nil, storageErr("fetch history", err)
	}
	return msgs, nil
}
