package models

import "strconv"

// ConversationKind tags a Conversation.
type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// Conversation is either a private chat between two users or a group chat.
// Private participants are stored sorted so both sides build the same value.
type Conversation struct {
	Kind    ConversationKind
	low     int
	high    int
	GroupID int
}

// Private builds the conversation between a and b, in either order.
func Private(a, b int) Conversation {
	if a > b {
		a, b = b, a
	}
	return Conversation{Kind: KindPrivate, low: a, high: b}
}

// Group builds the conversation of a group.
func Group(groupID int) Conversation {
	return Conversation{Kind: KindGroup, GroupID: groupID}
}

func (c Conversation) IsGroup() bool { return c.Kind == KindGroup }

// Participants returns the private participants, lowest id first.
func (c Conversation) Participants() (int, int) { return c.low, c.high }

// Peer returns the other participant of a private conversation, or 0.
func (c Conversation) Peer(userID int) int {
	switch {
	case c.IsGroup():
		return 0
	case c.low == userID:
		return c.high
	case c.high == userID:
		return c.low
	default:
		return 0
	}
}

// RoomKey is `private:{min}:{max}` or `group:{id}`.
func (c Conversation) RoomKey() string {
	if c.IsGroup() {
		return "group:" + strconv.Itoa(c.GroupID)
	}
	return "private:" + strconv.Itoa(c.low) + ":" + strconv.Itoa(c.high)
}

func (c Conversation) String() string { return c.RoomKey() }

// PersonalRoom is the channel every connection of userID joins on connect.
func PersonalRoom(userID int) string {
	return "user:" + strconv.Itoa(userID)
}
