package models

import (
	"time"
)

// FollowEdge represents one directed relationship: a resolved follow or a
// pending follow request from FollowerID to FolloweeID
type FollowEdge struct {
	FollowerID string    `gorm:"primaryKey;type:varchar(64);column:follower_id;check:follow_edges_no_self,follower_id <> followee_id"`
	FolloweeID string    `gorm:"primaryKey;type:varchar(64);column:followee_id;index:follow_edges_followee_ix,priority:1"`
	Status     int16     `gorm:"type:smallint;not null;column:status;index:follow_edges_followee_ix,priority:2"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at"`

	// Relationships
	Follower *Account `gorm:"foreignKey:FollowerID;references:ID"`
	Followee *Account `gorm:"foreignKey:FolloweeID;references:ID"`
}

// TableName specifies the table name for FollowEdge
func (FollowEdge) TableName() string {
	return "follow_edges"
}

// Follow edge states
const (
	FollowStatusPending   int16 = 1 // Awaiting accept/decline
	FollowStatusFollowing int16 = 2 // Resolved follow
)
