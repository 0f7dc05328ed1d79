package models

import (
	"time"
)

// Account represents one user identity and its relationship counters
type Account struct {
	ID          string `gorm:"primaryKey;type:varchar(64);column:id"`
	Username    string `gorm:"type:varchar(64);not null;uniqueIndex:accounts_username_ux;column:username"`
	DisplayName string `gorm:"type:varchar(100);not null;default:'';column:display_name"`
	Privacy     string `gorm:"type:varchar(16);not null;default:'public';column:privacy"`

	// Social stats, kept equal to the matching follow_edges cardinalities
	FollowerCount        int64 `gorm:"not null;default:0;column:follower_count"`
	FollowingCount       int64 `gorm:"not null;default:0;column:following_count"`
	PendingOutgoingCount int64 `gorm:"not null;default:0;column:pending_outgoing_count"`
	PendingIncomingCount int64 `gorm:"not null;default:0;column:pending_incoming_count"`

	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
