package authz

import (
	"context"
	"fmt"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

// MatchChecker answers whether two users hold an active match.
type MatchChecker interface {
	IsMatch(ctx context.Context, userID int, otherID int) (bool, error)
}

// MembershipChecker answers whether a user belongs to a group.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID int, userID int) (bool, error)
}

// Gate decides whether a user may take part in a conversation. Nothing is
// cached: a revoked match or membership applies to the next event.
type Gate struct {
	matches MatchChecker
	members MembershipChecker
}

func NewGate(matches MatchChecker, members MembershipChecker) *Gate {
	return &Gate{matches: matches, members: members}
}

// CanPrivateChat reports whether userID and otherID are matched.
func (g *Gate) CanPrivateChat(ctx context.Context, userID, otherID int) (bool, error) {
	if userID == otherID {
		return false, fmt.Errorf("cannot chat with self: %w", errs.ErrValidation)
	}
	ok, err := g.matches.IsMatch(ctx, userID, otherID)
	if err != nil {
		return false, fmt.Errorf("match lookup: %w", err)
	}
	return ok, nil
}

// CanGroupChat reports whether userID is a current member of groupID.
func (g *Gate) CanGroupChat(ctx context.Context, userID, groupID int) (bool, error) {
	ok, err := g.members.IsMember(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return ok, nil
}

// Authorize returns nil when userID may read and write conv.
func (g *Gate) Authorize(ctx context.Context, userID int, conv models.Conversation) error {
	if userID <= 0 {
		return errs.ErrUnauthenticated
	}

	var (
		ok  bool
		err error
	)
	if conv.IsGroup() {
		ok, err = g.CanGroupChat(ctx, userID, conv.GroupID)
	} else {
		if low, high := conv.Participants(); low == high {
			return fmt.Errorf("cannot chat with self: %w", errs.ErrValidation)
		}
		peer := conv.Peer(userID)
		if peer == 0 {
			return fmt.Errorf("user %d is not part of %s: %w", userID, conv, errs.ErrForbidden)
		}
		ok, err = g.CanPrivateChat(ctx, userID, peer)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("authorize %s: %w: %w", conv, errs.ErrPersistence, ctx.Err())
		}
		return err
	}
	if !ok {
		if conv.IsGroup() {
			return fmt.Errorf("not a member of group %d: %w", conv.GroupID, errs.ErrForbidden)
		}
		return fmt.Errorf("no active match: %w", errs.ErrForbidden)
	}
	return nil
}
