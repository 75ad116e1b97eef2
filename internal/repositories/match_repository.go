package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// MatchRepository reads match relationships. A match authorizes private
// messaging in both directions while it is active.
type MatchRepository interface {
	IsMatch(ctx context.Context, userID int, otherID int) (bool, error)
	ListPartnerIDs(ctx context.Context, userID int) ([]int, error)
}

// MatchRepo is a sqlx implementation of MatchRepository.
type MatchRepo struct {
	db *sqlx.DB
}

// NewMatchRepo constructs a MatchRepo.
func NewMatchRepo(db *sqlx.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// IsMatch checks for an active match stored in either order.
func (r *MatchRepo) IsMatch(ctx context.Context, userID int, otherID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM matches
        WHERE ((user1_id=$1 AND user2_id=$2) OR (user1_id=$2 AND user2_id=$1)) AND is_active = TRUE)`, userID, otherID)
	if err != nil {
		return false, storageErr("check match", err)
	}
	return exists, nil
}

// ListPartnerIDs returns every user with an active match with userID.
func (r *MatchRepo) ListPartnerIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END AS partner_id
        FROM matches WHERE (user1_id=$1 OR user2_id=$1) AND is_active = TRUE
        ORDER BY partner_id`, userID)
	if err != nil {
		return nil, storageErr("list partners", err)
	}
	return ids, nil
}
