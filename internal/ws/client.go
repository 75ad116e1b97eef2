package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-gateway/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one open connection. Writes go through a bounded buffer drained
// by writePump; a full buffer closes the connection instead of blocking the
// broadcaster.
type Client struct {
	info ConnInfo
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newClient(conn *websocket.Conn, info ConnInfo, buffer int) *Client {
	if buffer <= 0 {
		buffer = 128
	}
	return &Client{
		info:  info,
		conn:  conn,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.info.ConnID }

func (c *Client) UserID() int { return c.info.UserID }

func (c *Client) Info() ConnInfo { return c.info }

func (c *Client) Done() <-chan struct{} { return c.done }

// Enqueue queues frame for writing. It reports false when the client is
// closed or was just closed for being too slow.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		observability.IncSlowClient()
		c.Close("send buffer full")
		return false
	}
}

// Close stops the write pump; the pump closes the socket. Safe to call more
// than once.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// CloseReason is set once Close has run.
func (c *Client) CloseReason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}

func (c *Client) addRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[room]; ok {
		return false
	}
	c.rooms[room] = struct{}{}
	return true
}

func (c *Client) removeRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)
	return true
}

// InRoom reports whether the client joined room.
func (c *Client) InRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Rooms lists the joined rooms.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	return out
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, c.reason), time.Now().Add(writeWait))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close(err.Error())
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(err.Error())
				return
			}
		}
	}
}

// readPump hands every inbound text frame to dispatch, one at a time, until
// the socket fails or the client is closed.
func (c *Client) readPump(dispatch func([]byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		dispatch(frame)
	}
}
