package models

import "time"

// User is the authenticated principal. Rows are keyed by email: every
// authenticated request upserts the caller, so exactly one row exists per
// identity regardless of how many devices sign in.
type User struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name  string `gorm:"type:varchar(255)" json:"name"`
	Image string `gorm:"type:varchar(512)" json:"image"`
	Plan  string `gorm:"type:varchar(32);default:'free'" json:"plan"`

	LastSeenAt *time.Time `json:"last_seen_at"`
	LastChatAt *time.Time `json:"last_chat_at"`

	// Maintained by the turn-event worker, not the request path.
	TurnCount uint64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
