package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
)

var ErrUserNotFound = fmt.Errorf("user: %w", errs.ErrNotFound)

// UserRepository reads accounts owned by the account service.
type UserRepository interface {
	IDByUsername(ctx context.Context, username string) (int, error)
	GetUserInfo(ctx context.Context, userID int) (models.UserInfo, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) IDByUsername(ctx context.Context, username string) (int, error) {
	var id int
	err := r.db.GetContext(ctx, &id, `SELECT id FROM user_db WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, storageErr("lookup username", err)
	}
	return id, nil
}

// GetUserInfo returns the public profile; the first stored photo is used.
func (r *UserRepo) GetUserInfo(ctx context.Context, userID int) (models.UserInfo, error) {
	var row struct {
		ID       int            `db:"id"`
		Username string         `db:"username"`
		Photos   pq.StringArray `db:"profile_photo"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT u.id, u.username, up.profile_photo
        FROM user_db u LEFT JOIN user_profile up ON up.user_id = u.id
        WHERE u.id=$1 LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserInfo{}, ErrUserNotFound
	}
	if err != nil {
		return models.UserInfo{}, storageErr("get user", err)
	}

	info := models.UserInfo{ID: row.ID, Username: row.Username}
	if len(row.Photos) > 0 && row.Photos[0] != "" {
		photo := row.Photos[0]
		info.ProfilePhoto = &photo
	}
	return info, nil
}
