package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-gateway/internal/observability"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// userIDFromContext returns the id set by the auth middleware, 0 if none.
func userIDFromContext(c *gin.Context) int {
	if val, ok := c.Get("userID"); ok {
		if userID, ok := val.(int); ok {
			return userID
		}
	}
	return 0
}
