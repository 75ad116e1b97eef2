package models

// UserInfo is the public profile attached to chat_joined.
type UserInfo struct {
	ID           int     `db:"id" json:"id"`
	Username     string  `db:"username" json:"username"`
	ProfilePhoto *string `db:"profile_photo" json:"profile_photo"`
}
