package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

type historyServiceMock struct {
	mock.Mock
}

func (m *historyServiceMock) Authorize(ctx context.Context, userID int, conv models.Conversation) error {
	return m.Called(ctx, userID, conv).Error(0)
}

func (m *historyServiceMock) History(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conv, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func setupHistoryRouter(handler *HistoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats/:user_id/messages", handler.GetChatMessages)
	r.GET("/groups/:group_id/messages", handler.GetGroupMessages)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetChatMessagesSuccess(t *testing.T) {
	svc := new(historyServiceMock)
	router := setupHistoryRouter(NewHistoryHandler(svc, 50, zap.NewNop()))
	conv := models.Private(1, 2)

	svc.On("Authorize", mock.Anything, 1, conv).Return(nil).Once()
	svc.On("History", mock.Anything, conv, 10).Return([]models.Message{{ID: 1, SenderID: 2, ReceiverID: 1}}, nil).Once()

	rec := get(router, "/chats/2/messages?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RoomID   string           `json:"room_id"`
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "private:1:2", resp.RoomID)
	assert.Len(t, resp.Messages, 1)
	svc.AssertExpectations(t)
}

func TestGetChatMessagesDefaultAndClampedLimit(t *testing.T) {
	svc := new(historyServiceMock)
	router := setupHistoryRouter(NewHistoryHandler(svc, 50, zap.NewNop()))
	conv := models.Private(1, 2)

	svc.On("Authorize", mock.Anything, 1, conv).Return(nil)
	svc.On("History", mock.Anything, conv, 50).Return(nil, nil).Once()
	svc.On("History", mock.Anything, conv, maxHistoryLimit).Return(nil, nil).Once()

	rec := get(router, "/chats/2/messages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":"private:1:2","messages":[]}`, rec.Body.String())

	require.Equal(t, http.StatusOK, get(router, "/chats/2/messages?limit=5000").Code)
	svc.AssertExpectations(t)
}

func TestGetChatMessagesBadInput(t *testing.T) {
	svc := new(historyServiceMock)
	router := setupHistoryRouter(NewHistoryHandler(svc, 50, zap.NewNop()))

	for _, path := range []string{"/chats/abc/messages", "/chats/1/messages", "/chats/2/messages?limit=0", "/chats/2/messages?limit=x"} {
		assert.Equal(t, http.StatusBadRequest, get(router, path).Code, path)
	}
	svc.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		authz  error
		fetch  error
		status int
	}{
		{name: "forbidden", authz: fmt.Errorf("no match: %w", errs.ErrForbidden), status: http.StatusForbidden},
		{name: "storage", fetch: fmt.Errorf("fetch: %w: %w", errs.ErrPersistence, assert.AnError), status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(historyServiceMock)
			router := setupHistoryRouter(NewHistoryHandler(svc, 50, zap.NewNop()))
			conv := models.Private(1, 3)
			svc.On("Authorize", mock.Anything, 1, conv).Return(tt.authz).Once()
			if tt.authz == nil {
				svc.On("History", mock.Anything, conv, 50).Return(nil, tt.fetch).Once()
			}

			rec := get(router, "/chats/3/messages")
			require.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
			svc.AssertExpectations(t)
		})
	}
}

func TestGetGroupMessages(t *testing.T) {
	svc := new(historyServiceMock)
	router := setupHistoryRouter(NewHistoryHandler(svc, 20, zap.NewNop()))
	conv := models.Group(4)

	svc.On("Authorize", mock.Anything, 1, conv).Return(nil).Once()
	svc.On("History", mock.Anything, conv, 20).Return([]models.Message{{ID: 9, GroupID: 4}}, nil).Once()

	rec := get(router, "/groups/4/messages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"room_id":"group:4"`)

	assert.Equal(t, http.StatusBadRequest, get(router, "/groups/-1/messages").Code)
	svc.AssertExpectations(t)
}
