package chat

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"chat-gateway/internal/models"
)

// TypingTracker keeps who is typing in which room. Memory only.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[string]*typingRoom
}

type typingRoom struct {
	conv  models.Conversation
	users map[int]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string]*typingRoom)}
}

// SetTyping records userID's state in conv. changed is false when the state
// was already as requested; users is the resulting typing set, sorted.
func (t *TypingTracker) SetTyping(conv models.Conversation, userID int, isTyping bool) (bool, []int) {
	key := conv.RoomKey()
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[key]
	if !ok {
		if !isTyping {
			return false, []int{}
		}
		room = &typingRoom{conv: conv, users: make(map[int]struct{})}
		t.rooms[key] = room
	}

	_, present := room.users[userID]
	if present == isTyping {
		return false, sortedUsers(room.users)
	}
	if isTyping {
		room.users[userID] = struct{}{}
	} else {
		delete(room.users, userID)
	}
	users := sortedUsers(room.users)
	if len(room.users) == 0 {
		delete(t.rooms, key)
	}
	return true, users
}

// Clear removes userID from conv's typing set.
func (t *TypingTracker) Clear(conv models.Conversation, userID int) (bool, []int) {
	return t.SetTyping(conv, userID, false)
}

// RoomsOf lists the conversations userID is marked typing in.
func (t *TypingTracker) RoomsOf(userID int) []models.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.Conversation
	for _, room := range t.rooms {
		if _, ok := room.users[userID]; ok {
			out = append(out, room.conv)
		}
	}
	slices.SortFunc(out, func(a, b models.Conversation) int {
		return strings.Compare(a.RoomKey(), b.RoomKey())
	})
	return out
}

// Users returns the typing set of a room.
func (t *TypingTracker) Users(roomKey string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if room, ok := t.rooms[roomKey]; ok {
		return sortedUsers(room.users)
	}
	return []int{}
}

// DropRoom forgets a room entirely. Called when its last connection leaves.
func (t *TypingTracker) DropRoom(roomKey string) {
	t.mu.Lock()
	delete(t.rooms, roomKey)
	t.mu.Unlock()
}

func sortedUsers(users map[int]struct{}) []int {
	out := lo.Keys(users)
	slices.Sort(out)
	return out
}
