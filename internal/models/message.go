package models

import "time"

// MessageStatus is the delivery state of a message. It only moves forward.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether s -> next is a forward transition.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

// Predecessors lists the statuses a row may hold for an update to s to apply.
func (s MessageStatus) Predecessors() []string {
	rank, ok := statusRank[s]
	if !ok {
		return nil
	}
	out := make([]string, 0, 2)
	for _, candidate := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		if statusRank[candidate] < rank {
			out = append(out, string(candidate))
		}
	}
	return out
}

// MessageType describes the content; media types carry a reference URL.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
	TypeVideo MessageType = "video"
	TypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeVideo, TypeFile:
		return true
	}
	return false
}

// Message is a persisted chat message. ReceiverID is set for private
// messages, GroupID for group messages.
type Message struct {
	ID         int64         `db:"message_id" json:"message_id"`
	SenderID   int           `db:"sender_id" json:"sender_id"`
	SenderName string        `db:"sender_name" json:"sender_name,omitempty"`
	ReceiverID int           `db:"receiver_id" json:"receiver_id,omitempty"`
	GroupID    int           `db:"group_id" json:"group_id,omitempty"`
	Content    string        `db:"content" json:"content"`
	Type       MessageType   `db:"message_type" json:"type"`
	SentAt     time.Time     `db:"sent_at" json:"sent_at"`
	Status     MessageStatus `db:"status" json:"status"`
}

// Conversation derives the conversation the message belongs to.
func (m Message) Conversation() Conversation {
	if m.GroupID != 0 {
		return Group(m.GroupID)
	}
	return Private(m.SenderID, m.ReceiverID)
}
