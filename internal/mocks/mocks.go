package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var saved models.Message
	if val := args.Get(0); val != nil {
		saved = val.(models.Message)
	}
	return saved, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) (bool, error) {
	args := m.Called(ctx, messageID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int64, readerID int) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, readerID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, readerID, otherID int) ([]int64, error) {
	args := m.Called(ctx, readerID, otherID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) FetchHistory(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conv, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type MatchRepositoryMock struct {
	mock.Mock
}

func (m *MatchRepositoryMock) IsMatch(ctx context.Context, userID int, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *MatchRepositoryMock) ListPartnerIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) ListMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	args := m.Called(ctx, groupID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *GroupRepositoryMock) ListCoMemberIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) IDByUsername(ctx context.Context, username string) (int, error) {
	args := m.Called(ctx, username)
	return args.Int(0), args.Error(1)
}

func (m *UserRepositoryMock) GetUserInfo(ctx context.Context, userID int) (models.UserInfo, error) {
	args := m.Called(ctx, userID)
	var info models.UserInfo
	if val := args.Get(0); val != nil {
		info = val.(models.UserInfo)
	}
	return info, args.Error(1)
}

type ResolverMock struct {
	mock.Mock
}

func (m *ResolverMock) Resolve(ctx context.Context, credential string) (int, error) {
	args := m.Called(ctx, credential)
	return args.Int(0), args.Error(1)
}

type AuthorizerMock struct {
	mock.Mock
}

func (m *AuthorizerMock) Authorize(ctx context.Context, userID int, conv models.Conversation) error {
	args := m.Called(ctx, userID, conv)
	return args.Error(0)
}

// RoomsMock records what the pipeline fans out.
type RoomsMock struct {
	mock.Mock
}

func (m *RoomsMock) Broadcast(ctx context.Context, room string, event models.Event, excludeConnID string) error {
	args := m.Called(ctx, room, event, excludeConnID)
	return args.Error(0)
}

func (m *RoomsMock) SendToUserOutside(ctx context.Context, userID int, room string, event models.Event) error {
	args := m.Called(ctx, userID, room, event)
	return args.Error(0)
}

type PresenceMock struct {
	mock.Mock
}

func (m *PresenceMock) IsOnline(userID int) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.MatchRepository = (*MatchRepositoryMock)(nil)
var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ auth.Resolver = (*ResolverMock)(nil)
var _ chat.Authorizer = (*AuthorizerMock)(nil)
var _ chat.Rooms = (*RoomsMock)(nil)
var _ chat.Presence = (*PresenceMock)(nil)
var _ chat.MessageStore = (*MessageRepositoryMock)(nil)
