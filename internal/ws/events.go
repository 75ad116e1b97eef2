package ws

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

func (g *Gateway) handleJoinChat(ctx context.Context, c *Client, data []byte) error {
	var req models.JoinChatRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	userID, otherID := c.UserID(), req.OtherUserID.Int()
	conv := models.Private(userID, otherID)
	if err := g.pipeline.Authorize(ctx, userID, conv); err != nil {
		return err
	}

	if _, err := g.pipeline.MarkConversationRead(ctx, userID, otherID); err != nil {
		return err
	}
	history, err := g.pipeline.History(ctx, conv, g.opts.HistoryLimit)
	if err != nil {
		return err
	}

	var recipient *models.UserInfo
	if g.users != nil {
		info, err := g.users.GetUserInfo(ctx, otherID)
		switch {
		case err == nil:
			recipient = &info
		case errors.Is(err, errs.ErrNotFound):
		default:
			return err
		}
	}

	room := conv.RoomKey()
	if g.hub.Join(c, room) {
		g.publishLifecycle(ctx, c, "ws_join", room, "")
	}
	online := g.presence.IsOnline(otherID)
	g.send(c, models.EventChatJoined, models.ChatJoined{
		RoomID:    room,
		Recipient: recipient,
		IsOnline:  &online,
		Messages:  nonNil(history),
	})
	return nil
}

func (g *Gateway) handleLeaveChat(ctx context.Context, c *Client, data []byte) error {
	var req models.JoinChatRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	g.leave(ctx, c, models.Private(c.UserID(), req.OtherUserID.Int()).RoomKey())
	return nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data []byte) error {
	var req models.SendMessageRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	conv := models.Private(c.UserID(), req.ReceiverID.Int())
	_, err := g.pipeline.Send(ctx, c.UserID(), conv, req.Content, req.Type)
	return err
}

func (g *Gateway) handleMessageRead(ctx context.Context, c *Client, data []byte) error {
	var req models.MessageReadRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	_, err := g.pipeline.MarkRead(ctx, int64(req.MessageID), c.UserID())
	return err
}

func (g *Gateway) handleTyping(ctx context.Context, c *Client, data []byte) error {
	var req models.TypingRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	conv := models.Private(c.UserID(), req.ReceiverID.Int())
	return g.pipeline.SetTyping(ctx, c.UserID(), conv, typingFlag(req.IsTyping), c.ID())
}

func (g *Gateway) handleJoinGroup(ctx context.Context, c *Client, data []byte) error {
	var req models.JoinGroupRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	groupID := req.GroupID.Int()
	conv := models.Group(groupID)
	if err := g.pipeline.Authorize(ctx, c.UserID(), conv); err != nil {
		return err
	}
	history, err := g.pipeline.History(ctx, conv, g.opts.HistoryLimit)
	if err != nil {
		return err
	}

	online := []int{}
	if g.groups != nil {
		members, err := g.groups.ListMemberIDs(ctx, groupID)
		if err != nil {
			g.logger.Warn("group member lookup failed", zap.Int("group_id", groupID), zap.Error(err))
		}
		online = g.presence.OnlineAmong(members)
	}

	room := conv.RoomKey()
	if g.hub.Join(c, room) {
		g.publishLifecycle(ctx, c, "ws_join", room, "")
	}
	g.send(c, models.EventChatJoined, models.ChatJoined{
		RoomID:        room,
		GroupID:       groupID,
		OnlineMembers: online,
		Messages:      nonNil(history),
	})
	return nil
}

func (g *Gateway) handleLeaveGroup(ctx context.Context, c *Client, data []byte) error {
	var req models.JoinGroupRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	g.leave(ctx, c, models.Group(req.GroupID.Int()).RoomKey())
	return nil
}

func (g *Gateway) handleGroupMessage(ctx context.Context, c *Client, data []byte) error {
	var req models.GroupMessageRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	_, err := g.pipeline.Send(ctx, c.UserID(), models.Group(req.GroupID.Int()), req.Text(), req.Type)
	return err
}

func (g *Gateway) handleGroupTyping(ctx context.Context, c *Client, data []byte) error {
	var req models.GroupTypingRequest
	if err := g.codec.decode(data, &req); err != nil {
		return err
	}
	return g.pipeline.SetTyping(ctx, c.UserID(), models.Group(req.GroupID.Int()), typingFlag(req.IsTyping), c.ID())
}

// leave drops c from room, releases its typing state there when no other
// connection of the user remains, and confirms with chat_left.
func (g *Gateway) leave(ctx context.Context, c *Client, room string) {
	if g.hub.Leave(c, room) {
		g.publishLifecycle(ctx, c, "ws_leave", room, "")
		userID := c.UserID()
		g.pipeline.ReleaseTyping(ctx, userID, func(r string) bool {
			return r != room || g.hub.UserInRoom(r, userID)
		})
	}
	g.send(c, models.EventChatLeft, models.ChatLeft{RoomID: room})
}

// typingFlag treats a missing is_typing as true.
func typingFlag(v *bool) bool {
	return v == nil || *v
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
