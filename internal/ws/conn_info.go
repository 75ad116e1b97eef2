package ws

import (
	"time"

	"chat-gateway/internal/observability"
)

// ConnInfo identifies one connection. UserID is 0 for anonymous sessions and
// never changes after the handshake.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) Anonymous() bool { return i.UserID == 0 }

func (i ConnInfo) identity() observability.Identity {
	return observability.Identity{UserID: i.UserID, DeviceID: i.DeviceID, IP: i.IP}
}

func (i ConnInfo) kind() string {
	if i.Anonymous() {
		return "anonymous"
	}
	return "authenticated"
}
