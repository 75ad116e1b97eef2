package ws

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"chat-gateway/internal/backplane"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

const personalPrefix = "user:"

// Hub maintains room membership for the connections of this process and
// routes broadcasts through a backplane. Rooms are pruned when empty.
type Hub struct {
	shards    [shardCount]*roomShard
	roomCount atomic.Int64

	mu        sync.RWMutex
	backplane backplane.Publisher
	onPrune   []func(room string)

	logger *zap.Logger
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub delivering in-process only.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{logger: logger.With(zap.String("component", "hub"))}
	for i := range h.shards {
		h.shards[i] = &roomShard{rooms: make(map[string]map[*Client]struct{})}
	}
	h.backplane = backplane.NewLocal(h)
	return h
}

// SetBackplane swaps the broadcast transport, e.g. for backplane.Redis.
func (h *Hub) SetBackplane(p backplane.Publisher) {
	h.mu.Lock()
	h.backplane = p
	h.mu.Unlock()
}

// OnPrune registers fn to run when a room loses its last connection. fn is
// called with the room's shard locked and must not call back into the hub.
func (h *Hub) OnPrune(fn func(room string)) {
	h.mu.Lock()
	h.onPrune = append(h.onPrune, fn)
	h.mu.Unlock()
}

func (h *Hub) shard(room string) *roomShard {
	return h.shards[shardFor(room)]
}

// Join adds c to room. It reports false when c was already a member.
func (h *Hub) Join(c *Client, room string) bool {
	s := h.shard(room)
	s.mu.Lock()
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		s.rooms[room] = members
		observability.SetActiveRooms(int(h.roomCount.Add(1)))
	}
	_, already := members[c]
	members[c] = struct{}{}
	s.mu.Unlock()

	c.addRoom(room)
	return !already
}

// Leave removes c from room. It reports false when c was not a member.
func (h *Hub) Leave(c *Client, room string) bool {
	c.removeRoom(room)

	s := h.shard(room)
	s.mu.Lock()
	members, ok := s.rooms[room]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, ok := members[c]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(s.rooms, room)
		observability.SetActiveRooms(int(h.roomCount.Add(-1)))
		// Hooks run under the shard lock so a concurrent Join cannot
		// recreate the room before its state is dropped.
		h.pruned(room)
	}
	s.mu.Unlock()
	return true
}

// LeaveAll removes c from every room it joined and returns them.
func (h *Hub) LeaveAll(c *Client) []string {
	rooms := c.Rooms()
	for _, room := range rooms {
		h.Leave(c, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) pruned(room string) {
	h.mu.RLock()
	hooks := h.onPrune
	h.mu.RUnlock()
	for _, fn := range hooks {
		fn(room)
	}
}

// Members returns a snapshot of the clients in room.
func (h *Hub) Members(room string) []*Client {
	s := h.shard(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.rooms[room]))
	for c := range s.rooms[room] {
		out = append(out, c)
	}
	return out
}

// UserInRoom reports whether any local connection of userID is in room.
func (h *Hub) UserInRoom(room string, userID int) bool {
	s := h.shard(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.rooms[room] {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

// Snapshot maps every room to its member count.
func (h *Hub) Snapshot() map[string]int {
	out := make(map[string]int)
	for _, s := range h.shards {
		s.mu.RLock()
		for room, members := range s.rooms {
			out[room] = len(members)
		}
		s.mu.RUnlock()
	}
	return out
}

// Broadcast sends event to every member of room except excludeConnID.
func (h *Hub) Broadcast(ctx context.Context, room string, event models.Event, excludeConnID string) error {
	return h.publish(ctx, backplane.Envelope{Kind: backplane.KindRoom, Room: room, ExcludeConn: excludeConnID}, event)
}

// SendToUserOutside sends event on userID's personal channel, skipping the
// connections already in room so nobody gets it twice.
func (h *Hub) SendToUserOutside(ctx context.Context, userID int, room string, event models.Event) error {
	return h.publish(ctx, backplane.Envelope{Kind: backplane.KindUserOutside, Room: room, UserID: userID}, event)
}

// BroadcastAll sends event to every authenticated connection.
func (h *Hub) BroadcastAll(ctx context.Context, event models.Event) error {
	return h.publish(ctx, backplane.Envelope{Kind: backplane.KindAll}, event)
}

func (h *Hub) publish(ctx context.Context, env backplane.Envelope, event models.Event) error {
	frame, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name, err)
	}
	env.Payload = frame

	h.mu.RLock()
	bp := h.backplane
	h.mu.RUnlock()
	return bp.Publish(ctx, env)
}

// Deliver writes env to the matching local connections.
func (h *Hub) Deliver(env backplane.Envelope) {
	switch env.Kind {
	case backplane.KindRoom:
		for _, c := range h.Members(env.Room) {
			if c.ID() != env.ExcludeConn {
				c.Enqueue(env.Payload)
			}
		}
	case backplane.KindUserOutside:
		for _, c := range h.Members(models.PersonalRoom(env.UserID)) {
			if !c.InRoom(env.Room) {
				c.Enqueue(env.Payload)
			}
		}
	case backplane.KindAll:
		for _, s := range h.shards {
			s.mu.RLock()
			var targets []*Client
			for room, members := range s.rooms {
				if !strings.HasPrefix(room, personalPrefix) {
					continue
				}
				for c := range members {
					targets = append(targets, c)
				}
			}
			s.mu.RUnlock()
			for _, c := range targets {
				c.Enqueue(env.Payload)
			}
		}
	default:
		h.logger.Warn("unknown envelope kind", zap.String("kind", env.Kind))
	}
}
