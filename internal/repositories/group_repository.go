package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// GroupRepository reads travel group membership. Groups themselves are
// managed elsewhere.
type GroupRepository interface {
	IsMember(ctx context.Context, groupID int, userID int) (bool, error)
	ListMemberIDs(ctx context.Context, groupID int) ([]int, error)
	ListCoMemberIDs(ctx context.Context, userID int) ([]int, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// IsMember checks membership of an active group.
func (r *GroupRepo) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM travel_group_members gm
        JOIN travel_groups g ON g.group_id = gm.group_id
        WHERE gm.group_id=$1 AND gm.user_id=$2 AND g.is_active = TRUE)`, groupID, userID)
	if err != nil {
		return false, storageErr("check group membership", err)
	}
	return exists, nil
}

// ListMemberIDs returns the members of a group.
func (r *GroupRepo) ListMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM travel_group_members WHERE group_id=$1 ORDER BY user_id`, groupID); err != nil {
		return nil, storageErr("list group members", err)
	}
	return ids, nil
}

// ListCoMemberIDs returns everyone sharing an active group with userID.
func (r *GroupRepo) ListCoMemberIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT other.user_id
        FROM travel_group_members mine
        JOIN travel_group_members other ON other.group_id = mine.group_id
        JOIN travel_groups g ON g.group_id = mine.group_id
        WHERE mine.user_id=$1 AND other.user_id<>$1 AND g.is_active = TRUE
        ORDER BY other.user_id`, userID)
	if err != nil {
		return nil, storageErr("list co-members", err)
	}
	return ids, nil
}
