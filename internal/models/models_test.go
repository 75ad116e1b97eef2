package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomKeyIsOrderIndependent(t *testing.T) {
	pairs := [][2]int{{1, 2}, {2, 1}, {10, 3}, {7, 7}, {0, 42}, {1000000, 999999}}
	for _, p := range pairs {
		assert.Equal(t, Private(p[0], p[1]).RoomKey(), Private(p[1], p[0]).RoomKey())
		assert.Equal(t, Private(p[0], p[1]), Private(p[1], p[0]))
	}
	assert.Equal(t, "private:3:10", Private(10, 3).RoomKey())
	assert.Equal(t, "group:9", Group(9).RoomKey())
	assert.Equal(t, "user:4", PersonalRoom(4))
}

func TestConversationPeer(t *testing.T) {
	c := Private(8, 2)
	assert.Equal(t, 8, c.Peer(2))
	assert.Equal(t, 2, c.Peer(8))
	assert.Zero(t, c.Peer(5))
	assert.Zero(t, Group(1).Peer(2))
	low, high := c.Participants()
	assert.Equal(t, 2, low)
	assert.Equal(t, 8, high)
}

func TestStatusTransitionsAreForwardOnly(t *testing.T) {
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusRead))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusRead))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusSent))
	assert.False(t, StatusRead.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusRead.CanAdvanceTo(StatusRead))
	assert.False(t, MessageStatus("failed").CanAdvanceTo(StatusRead))

	assert.Equal(t, []string{"sent"}, StatusDelivered.Predecessors())
	assert.Equal(t, []string{"sent", "delivered"}, StatusRead.Predecessors())
	assert.Empty(t, StatusSent.Predecessors())
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var req JoinChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"other_user_id":"17"}`), &req))
	assert.Equal(t, 17, req.OtherUserID.Int())

	require.NoError(t, json.Unmarshal([]byte(`{"other_user_id":23}`), &req))
	assert.Equal(t, 23, req.OtherUserID.Int())

	require.NoError(t, json.Unmarshal([]byte(`{"other_user_id":null}`), &req))
	assert.Zero(t, req.OtherUserID)

	assert.Error(t, json.Unmarshal([]byte(`{"other_user_id":"abc"}`), &req))
}

func TestMessageConversation(t *testing.T) {
	assert.Equal(t, Private(1, 2), Message{SenderID: 2, ReceiverID: 1}.Conversation())
	assert.Equal(t, Group(5), Message{SenderID: 2, GroupID: 5}.Conversation())
}

func TestGroupMessageText(t *testing.T) {
	assert.Equal(t, "hi", GroupMessageRequest{Message: "hi"}.Text())
	assert.Equal(t, "yo", GroupMessageRequest{Content: "yo", Message: "hi"}.Text())
}
