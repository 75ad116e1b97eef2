package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

var privateColumns = []string{"message_id", "sender_id", "receiver_id", "content", "message_type", "sent_at", "status", "sender_name"}

func newMockRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageRepo(sqlx.NewDb(db, "postgres")), m
}

func TestSaveMessagePrivateDefaultsToText(t *testing.T) {
	repo, m := newMockRepo(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages (sender_id, receiver_id, content, message_type, status)")).
		WithArgs(1, 2, "hi", models.TypeText).
		WillReturnRows(sqlmock.NewRows(privateColumns).AddRow(11, 1, 2, "hi", "text", at, "sent", "alice"))

	saved, err := repo.SaveMessage(context.Background(), models.Message{ID: 99, SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), saved.ID)
	assert.Equal(t, models.StatusSent, saved.Status)
	assert.Equal(t, "alice", saved.SenderName)
	assert.Equal(t, at, saved.SentAt)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestSaveMessageGroupUsesGroupTable(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO travel_group_messages (group_id, sender_id, content, message_type, status)")).
		WithArgs(4, 1, "https://cdn/x.png", models.TypeImage).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "group_id", "sender_id", "content", "message_type", "sent_at", "status", "sender_name"}).
			AddRow(12, 4, 1, "https://cdn/x.png", "image", time.Now(), "sent", ""))

	saved, err := repo.SaveMessage(context.Background(), models.Message{SenderID: 1, GroupID: 4, Content: "https://cdn/x.png", Type: models.TypeImage})
	require.NoError(t, err)
	assert.Equal(t, 4, saved.GroupID)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestSaveMessageWrapsStorageErrors(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery("INSERT INTO messages").WillReturnError(errors.New("connection reset"))

	_, err := repo.SaveMessage(context.Background(), models.Message{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.Equal(t, errs.CodePersistence, errs.Code(err))
}

func TestUpdateStatusOnlyMovesForward(t *testing.T) {
	query := regexp.QuoteMeta("UPDATE messages SET status=$2 WHERE message_id=$1 AND status = ANY($3)")
	tests := []struct {
		name     string
		status   models.MessageStatus
		from     []string
		affected int64
		changed  bool
	}{
		{name: "delivered from sent", status: models.StatusDelivered, from: []string{"sent"}, affected: 1, changed: true},
		{name: "read from sent or delivered", status: models.StatusRead, from: []string{"sent", "delivered"}, affected: 1, changed: true},
		{name: "already past", status: models.StatusDelivered, from: []string{"sent"}, affected: 0, changed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, m := newMockRepo(t)
			m.ExpectExec(query).
				WithArgs(int64(8), tt.status, pq.Array(tt.from)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			changed, err := repo.UpdateStatus(context.Background(), 8, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	repo, m := newMockRepo(t)

	_, err := repo.UpdateStatus(context.Background(), 8, models.MessageStatus("lost"))
	assert.ErrorIs(t, err, errs.ErrValidation)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestMarkReadByReceiver(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(regexp.QuoteMeta("WHERE message_id=$1 AND receiver_id=$2 AND status <> 'read'")).
		WithArgs(int64(5), 2).
		WillReturnRows(sqlmock.NewRows(privateColumns[:7]).AddRow(5, 1, 2, "hi", "text", time.Now(), "read"))

	msg, ok, err := repo.MarkRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.StatusRead, msg.Status)
	assert.Equal(t, 1, msg.SenderID)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestMarkReadByOtherUserIsNoop(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(regexp.QuoteMeta("WHERE message_id=$1 AND receiver_id=$2 AND status <> 'read'")).
		WithArgs(int64(5), 1).
		WillReturnRows(sqlmock.NewRows(privateColumns[:7]))

	msg, ok, err := repo.MarkRead(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, msg.ID)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestMarkConversationReadSortsIDs(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(regexp.QuoteMeta("WHERE receiver_id=$1 AND sender_id=$2 AND status <> 'read'")).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"message_id"}).AddRow(9).AddRow(3).AddRow(6))

	ids, err := repo.MarkConversationRead(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 6, 9}, ids)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestFetchHistoryPrivateTakesNewestThenOrdersOldestFirst(t *testing.T) {
	repo, m := newMockRepo(t)
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.ExpectQuery(regexp.QuoteMeta("ORDER BY m.sent_at DESC, m.message_id DESC LIMIT $3 ) recent ORDER BY sent_at ASC, message_id ASC")).
		WithArgs(4, 9, 50).
		WillReturnRows(sqlmock.NewRows(privateColumns).
			AddRow(1, 4, 9, "a", "text", first, "read", "bob").
			AddRow(2, 9, 4, "b", "text", first.Add(time.Minute), "sent", "eve"))

	msgs, err := repo.FetchHistory(context.Background(), models.Private(9, 4), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.True(t, msgs[0].SentAt.Before(msgs[1].SentAt))
	require.NoError(t, m.ExpectationsWereMet())
}

func TestFetchHistoryGroupEmptyIsNotNil(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(regexp.QuoteMeta("WHERE m.group_id=$1 ORDER BY m.sent_at DESC, m.message_id DESC LIMIT $2")).
		WithArgs(7, 20).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "group_id", "sender_id", "content", "message_type", "sent_at", "status", "sender_name"}))

	msgs, err := repo.FetchHistory(context.Background(), models.Group(7), 20)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	require.NoError(t, m.ExpectationsWereMet())
}
