package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fitsocial/followgraph/internal/models"
	"github.com/fitsocial/followgraph/internal/relation"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// UpdatePrivacy sets the privacy flag and reports whether the account exists
func (r *AccountRepository) UpdatePrivacy(ctx context.Context, id, privacy string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"privacy":    privacy,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateProfile sets the non-empty profile fields and reports whether the
// account exists
func (r *AccountRepository) UpdateProfile(ctx context.Context, id, username, displayName string) (bool, error) {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if username != "" {
		updates["username"] = username
	}
	if displayName != "" {
		updates["display_name"] = displayName
	}

	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FollowRepository provides follow edge database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// GetPair retrieves the edges between a and b in both directions
func (r *FollowRepository) GetPair(ctx context.Context, a, b string) ([]models.FollowEdge, error) {
	var edges []models.FollowEdge
	err := r.db.WithContext(ctx).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)", a, b, b, a).
		Find(&edges).Error
	return edges, err
}

// ListMembers retrieves one relationship set of an account, oldest edge first
func (r *FollowRepository) ListMembers(ctx context.Context, id string, kind relation.SetKind, offset, limit int) ([]string, error) {
	var owner, member string
	var status int16
	switch kind {
	case relation.Followers:
		owner, member, status = "followee_id", "follower_id", models.FollowStatusFollowing
	case relation.Following:
		owner, member, status = "follower_id", "followee_id", models.FollowStatusFollowing
	case relation.PendingOutgoing:
		owner, member, status = "follower_id", "followee_id", models.FollowStatusPending
	case relation.PendingIncoming:
		owner, member, status = "followee_id", "follower_id", models.FollowStatusPending
	default:
		return nil, fmt.Errorf("%w: unknown set %d", relation.ErrInvalidArgument, kind)
	}

	if offset < 0 {
		offset = 0
	}
	q := r.db.WithContext(ctx).
		Model(&models.FollowEdge{}).
		Where(owner+" = ? AND status = ?", id, status).
		Order("created_at ASC").
		Order(member + " ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	ids := []string{}
	if err := q.Pluck(member, &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
