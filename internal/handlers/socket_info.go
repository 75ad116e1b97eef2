package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SocketInfo tells clients where to open the WebSocket.
func SocketInfo(host string, port int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"socket_host": host,
			"socket_port": port,
			"status":      "online",
		})
	}
}

// Pinger is the readiness dependency of Healthz, typically *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports ok while db answers. A nil db only checks liveness.
func Healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
