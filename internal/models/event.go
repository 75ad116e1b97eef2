package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Client events.
const (
	EventJoinChat       = "join_chat"
	EventLeaveChat      = "leave_chat"
	EventSendMessage    = "send_message"
	EventMessageRead    = "message_read"
	EventTyping         = "typing"
	EventJoinGroupChat  = "join_group_chat"
	EventLeaveGroupChat = "leave_group_chat"
	EventGroupMessage   = "group_message"
	EventGroupTyping    = "group_typing"
)

// Server events.
const (
	EventConnectionStatus = "connection_status"
	EventUserStatus       = "user_status"
	EventChatJoined       = "chat_joined"
	EventChatLeft         = "chat_left"
	EventNewMessage       = "new_message"
	EventMessageStatus    = "message_status"
	EventTypingStatus     = "typing_status"
	EventError            = "error"
)

// Event is one frame on the wire: {"event": "...", "data": {...}}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Encode marshals the frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ID accepts both JSON numbers and numeric strings; clients send either.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", b)
	}
	*id = ID(v)
	return nil
}

func (id ID) Int() int { return int(id) }

// Inbound payloads.

type JoinChatRequest struct {
	OtherUserID ID `json:"other_user_id" validate:"required,gt=0"`
}

type SendMessageRequest struct {
	Content    string      `json:"content" validate:"required,max=4000"`
	ReceiverID ID          `json:"receiver_id" validate:"required,gt=0"`
	Type       MessageType `json:"type"`
}

type MessageReadRequest struct {
	MessageID ID `json:"message_id" validate:"required,gt=0"`
}

type TypingRequest struct {
	ReceiverID ID    `json:"receiver_id" validate:"required,gt=0"`
	IsTyping   *bool `json:"is_typing"`
}

type JoinGroupRequest struct {
	GroupID ID `json:"group_id" validate:"required,gt=0"`
}

// GroupMessageRequest accepts `message` as an alias of `content`.
type GroupMessageRequest struct {
	Content string      `json:"content" validate:"required_without=Message,max=4000"`
	Message string      `json:"message" validate:"max=4000"`
	GroupID ID          `json:"group_id" validate:"required,gt=0"`
	Type    MessageType `json:"type"`
}

// Text returns whichever of content/message was provided.
func (r GroupMessageRequest) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Message
}

type GroupTypingRequest struct {
	GroupID  ID    `json:"group_id" validate:"required,gt=0"`
	IsTyping *bool `json:"is_typing"`
}

// Outbound payloads.

type ConnectionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	UserID  int    `json:"user_id,omitempty"`
}

type UserStatus struct {
	UserID int    `json:"user_id"`
	Status string `json:"status"`
}

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type ChatJoined struct {
	RoomID        string    `json:"room_id"`
	Recipient     *UserInfo `json:"recipient,omitempty"`
	IsOnline      *bool     `json:"is_online,omitempty"`
	GroupID       int       `json:"group_id,omitempty"`
	OnlineMembers []int     `json:"online_members,omitempty"`
	Messages      []Message `json:"messages"`
}

type ChatLeft struct {
	RoomID string `json:"room_id"`
}

type MessageStatusUpdate struct {
	MessageID int64         `json:"message_id"`
	Status    MessageStatus `json:"status"`
}

type TypingStatus struct {
	GroupID  int   `json:"group_id,omitempty"`
	UserID   int   `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
	Users    []int `json:"users"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
}
