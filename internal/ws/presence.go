package ws

import (
	"strconv"
	"sync"
)

// Presence tracks the open connections of every authenticated user held by
// this process. A user is online while at least one connection remains.
type Presence struct {
	shards [shardCount]*presenceShard
}

type presenceShard struct {
	mu    sync.RWMutex
	users map[int]map[string]*Client
}

func NewPresence() *Presence {
	p := &Presence{}
	for i := range p.shards {
		p.shards[i] = &presenceShard{users: make(map[int]map[string]*Client)}
	}
	return p
}

func (p *Presence) shard(userID int) *presenceShard {
	return p.shards[shardFor(strconv.Itoa(userID))]
}

// Add registers c and reports whether it is the user's first connection.
func (p *Presence) Add(c *Client) bool {
	if c.info.Anonymous() {
		return false
	}
	s := p.shard(c.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[c.UserID()]
	if !ok {
		conns = make(map[string]*Client)
		s.users[c.UserID()] = conns
	}
	conns[c.ID()] = c
	return len(conns) == 1
}

// Remove unregisters c and reports whether it was the user's last connection.
func (p *Presence) Remove(c *Client) bool {
	if c.info.Anonymous() {
		return false
	}
	s := p.shard(c.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[c.UserID()]
	if !ok {
		return false
	}
	if _, ok := conns[c.ID()]; !ok {
		return false
	}
	delete(conns, c.ID())
	if len(conns) == 0 {
		delete(s.users, c.UserID())
		return true
	}
	return false
}

func (p *Presence) IsOnline(userID int) bool {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}

// Connections counts the user's open connections.
func (p *Presence) Connections(userID int) int {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID])
}

// OnlineAmong filters ids down to online users, keeping order.
func (p *Presence) OnlineAmong(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if p.IsOnline(id) {
			out = append(out, id)
		}
	}
	return out
}

// Count returns the number of online users.
func (p *Presence) Count() int {
	total := 0
	for _, s := range p.shards {
		s.mu.RLock()
		total += len(s.users)
		s.mu.RUnlock()
	}
	return total
}
