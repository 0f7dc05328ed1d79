package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitsocial/followgraph/internal/models"
	"github.com/fitsocial/followgraph/internal/relation"
)

// CounterDrift is an account whose stored counters differ from the
// cardinality of its edges
type CounterDrift struct {
	AccountID string
	Stored    relation.Counters
	Actual    relation.Counters
}

type recountRow struct {
	ID                   string `gorm:"column:id"`
	FollowerCount        int64  `gorm:"column:follower_count"`
	FollowingCount       int64  `gorm:"column:following_count"`
	PendingOutgoingCount int64  `gorm:"column:pending_outgoing_count"`
	PendingIncomingCount int64  `gorm:"column:pending_incoming_count"`
	Followers            int64  `gorm:"column:followers"`
	Following            int64  `gorm:"column:following"`
	PendingOutgoing      int64  `gorm:"column:pending_outgoing"`
	PendingIncoming      int64  `gorm:"column:pending_incoming"`
}

const recountQuery = `
SELECT a.id, a.follower_count, a.following_count, a.pending_outgoing_count, a.pending_incoming_count,
	(SELECT COUNT(*) FROM follow_edges e WHERE e.followee_id = a.id AND e.status = @following) AS followers,
	(SELECT COUNT(*) FROM follow_edges e WHERE e.follower_id = a.id AND e.status = @following) AS following,
	(SELECT COUNT(*) FROM follow_edges e WHERE e.follower_id = a.id AND e.status = @pending) AS pending_outgoing,
	(SELECT COUNT(*) FROM follow_edges e WHERE e.followee_id = a.id AND e.status = @pending) AS pending_incoming
FROM accounts a
ORDER BY a.id`

// Recount compares every account's counters with its edges. With fix set,
// drifted counters are overwritten with the edge counts in one transaction
func (s *AccountStore) Recount(ctx context.Context, fix bool) ([]CounterDrift, error) {
	var drifts []CounterDrift

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []recountRow
		if err := tx.Raw(recountQuery, map[string]interface{}{
			"following": models.FollowStatusFollowing,
			"pending":   models.FollowStatusPending,
		}).Scan(&rows).Error; err != nil {
			return fmt.Errorf("failed to count edges: %w", err)
		}

		for _, r := range rows {
			stored := relation.Counters{
				Followers:       r.FollowerCount,
				Following:       r.FollowingCount,
				PendingOutgoing: r.PendingOutgoingCount,
				PendingIncoming: r.PendingIncomingCount,
			}
			actual := relation.Counters{
				Followers:       r.Followers,
				Following:       r.Following,
				PendingOutgoing: r.PendingOutgoing,
				PendingIncoming: r.PendingIncoming,
			}
			if stored == actual {
				continue
			}
			drifts = append(drifts, CounterDrift{AccountID: r.ID, Stored: stored, Actual: actual})
			if !fix {
				continue
			}
			if err := tx.Model(&models.Account{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
				"follower_count":         actual.Followers,
				"following_count":        actual.Following,
				"pending_outgoing_count": actual.PendingOutgoing,
				"pending_incoming_count": actual.PendingIncoming,
				"updated_at":             time.Now().UTC(),
			}).Error; err != nil {
				return fmt.Errorf("failed to fix counters of %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("Recount finished", zap.Int("drifted", len(drifts)), zap.Bool("fixed", fix))
	return drifts, nil
}
