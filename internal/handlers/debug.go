package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/telemetry"
)

// RoomSnapshotter is implemented by ws.Hub.
type RoomSnapshotter interface {
	Snapshot() map[string]int
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, rooms RoomSnapshotter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/rooms", func(c *gin.Context) {
		snapshot := rooms.Snapshot()
		c.JSON(http.StatusOK, gin.H{"rooms": snapshot, "count": len(snapshot)})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
