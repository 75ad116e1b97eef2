package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

const maxHistoryLimit = 200

// HistoryService is the slice of chat.Pipeline the REST history needs.
type HistoryService interface {
	Authorize(ctx context.Context, userID int, conv models.Conversation) error
	History(ctx context.Context, conv models.Conversation, limit int) ([]models.Message, error)
}

// HistoryHandler serves conversation history over REST.
type HistoryHandler struct {
	history      HistoryService
	defaultLimit int
	logger       *zap.Logger
}

func NewHistoryHandler(history HistoryService, defaultLimit int, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history:      history,
		defaultLimit: defaultLimit,
		logger:       logger.With(zap.String("component", "history")),
	}
}

// GetChatMessages returns the newest messages between the caller and :user_id.
func (h *HistoryHandler) GetChatMessages(c *gin.Context) {
	userID := c.GetInt("userID")
	otherID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if otherID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}
	h.respond(c, userID, models.Private(userID, otherID))
}

// GetGroupMessages returns the newest messages of a group the caller belongs to.
func (h *HistoryHandler) GetGroupMessages(c *gin.Context) {
	userID := c.GetInt("userID")
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil || groupID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	h.respond(c, userID, models.Group(groupID))
}

func (h *HistoryHandler) respond(c *gin.Context, userID int, conv models.Conversation) {
	limit, ok := h.limit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	ctx := c.Request.Context()
	if err := h.history.Authorize(ctx, userID, conv); err != nil {
		h.fail(c, conv, err)
		return
	}
	msgs, err := h.history.History(ctx, conv, limit)
	if err != nil {
		h.fail(c, conv, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"room_id": conv.RoomKey(), "messages": msgs})
}

func (h *HistoryHandler) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return h.defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxHistoryLimit), true
}

func (h *HistoryHandler) fail(c *gin.Context, conv models.Conversation, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("history failed", zap.String("room", conv.RoomKey()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errs.Message(err), "code": errs.Code(err)})
}
