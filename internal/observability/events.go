package observability

import "time"

// Routing keys for websocket lifecycle envelopes.
const (
	RoutingWSConnections = "ws_events.connections"
	RoutingWSRooms       = "ws_events.rooms"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSPayload describes one websocket lifecycle event.
type WSPayload struct {
	WS       WSDetails `json:"ws"`
	Identity Identity  `json:"identity"`
}

type WSDetails struct {
	Room       string `json:"room,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

type Identity struct {
	UserID   int    `json:"user_id"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

// WSEnvelope wraps a lifecycle event of a connection opened at connectedAt.
func WSEnvelope(event, room, connID, reason string, connectedAt time.Time, identity Identity) EventEnvelope {
	var duration int64
	if !connectedAt.IsZero() {
		duration = time.Since(connectedAt).Milliseconds()
	}
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: WSPayload{
			WS: WSDetails{
				Room:       room,
				Event:      event,
				ConnID:     connID,
				DurationMS: duration,
				Reason:     reason,
			},
			Identity: identity,
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
