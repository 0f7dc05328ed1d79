package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fitsocial/followgraph/internal/models"
	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/logging"
)

// AccountStore is the PostgreSQL account record store. Relationship sets
// live as rows of follow_edges; counters live on accounts and are updated
// in the same transaction as the edge they count
type AccountStore struct {
	db       *gorm.DB
	accounts *AccountRepository
	follows  *FollowRepository
	logger   *zap.Logger
}

// NewAccountStore creates a store on an open database
func NewAccountStore(database *DB) *AccountStore {
	repo := NewRepository(database.DB)
	return &AccountStore{
		db:       database.DB,
		accounts: NewAccountRepository(repo),
		follows:  NewFollowRepository(repo),
		logger:   logging.WithComponent("account-store"),
	}
}

// CreateAccount inserts a zero-state account
func (s *AccountStore) CreateAccount(ctx context.Context, acct relation.Account) (relation.Account, error) {
	row := fromDomain(acct)
	row.FollowerCount, row.FollowingCount, row.PendingOutgoingCount, row.PendingIncomingCount = 0, 0, 0, 0
	if err := s.accounts.Create(ctx, &row); err != nil {
		return relation.Account{}, storeError(err)
	}
	return toDomain(&row), nil
}

// LoadAccount returns the account with id
func (s *AccountStore) LoadAccount(ctx context.Context, id string) (relation.Account, error) {
	row, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return relation.Account{}, storeError(err)
	}
	if row == nil {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	return toDomain(row), nil
}

// SetPrivacy updates the privacy flag of one account
func (s *AccountStore) SetPrivacy(ctx context.Context, id string, p relation.Privacy) (relation.Account, error) {
	found, err := s.accounts.UpdatePrivacy(ctx, id, string(p))
	if err != nil {
		return relation.Account{}, storeError(err)
	}
	if !found {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	return s.LoadAccount(ctx, id)
}

// UpdateProfile changes the username and display name of one account
func (s *AccountStore) UpdateProfile(ctx context.Context, id, username, displayName string) (relation.Account, error) {
	found, err := s.accounts.UpdateProfile(ctx, id, username, displayName)
	if err != nil {
		return relation.Account{}, storeError(err)
	}
	if !found {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	return s.LoadAccount(ctx, id)
}

// QueryRelationshipState returns the pair state of (a, b) seen from a
func (s *AccountStore) QueryRelationshipState(ctx context.Context, a, b string) (relation.PairState, error) {
	edges, err := s.follows.GetPair(ctx, a, b)
	if err != nil {
		return relation.PairState{}, storeError(err)
	}
	return pairState(a, edges), nil
}

// ListMembers returns a slice of one relationship set, oldest first
func (s *AccountStore) ListMembers(ctx context.Context, id string, kind relation.SetKind, offset, limit int) ([]string, error) {
	ids, err := s.follows.ListMembers(ctx, id, kind, offset, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return ids, nil
}

// ApplyPairTransaction locks both account rows, hands the current pair to
// mutate and writes the resulting edge change and counter deltas in one
// transaction
func (s *AccountStore) ApplyPairTransaction(ctx context.Context, a, b string, mutate relation.PairMutator) (relation.Account, relation.Account, error) {
	var outA, outB relation.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockAccounts(tx, a, b)
		if err != nil {
			return err
		}
		rowA, ok := locked[a]
		if !ok {
			return fmt.Errorf("%w: account %s", relation.ErrNotFound, a)
		}
		rowB, ok := locked[b]
		if !ok {
			return fmt.Errorf("%w: account %s", relation.ErrNotFound, b)
		}

		var edges []models.FollowEdge
		if err := tx.Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)", a, b, b, a).
			Find(&edges).Error; err != nil {
			return err
		}
		state := pairState(a, edges)

		ma, mb, err := mutate(relation.PairView{A: toDomain(rowA), B: toDomain(rowB), State: state})
		if err != nil {
			return err
		}
		if a == b {
			return fmt.Errorf("%w: pair of %s with itself", relation.ErrSelfReference, a)
		}
		if ma.Peer != b || mb.Peer != a {
			return fmt.Errorf("%w: mutation peers %s/%s do not match pair %s/%s",
				relation.ErrInvalidTransition, ma.Peer, mb.Peer, a, b)
		}

		next, err := state.Apply(ma)
		if err != nil {
			return err
		}
		mirrored, err := state.Reverse().Apply(mb)
		if err != nil {
			return err
		}
		if mirrored.Reverse() != next {
			return fmt.Errorf("%w: mutations %s and %s disagree", relation.ErrInvalidTransition, ma, mb)
		}

		now := time.Now().UTC()
		if err := writeEdge(tx, a, b, state.Outgoing, next.Outgoing, now); err != nil {
			return err
		}
		if err := writeEdge(tx, b, a, state.Incoming, next.Incoming, now); err != nil {
			return err
		}
		if err := addCounters(tx, a, ma.Delta(), now); err != nil {
			return err
		}
		if err := addCounters(tx, b, mb.Delta(), now); err != nil {
			return err
		}

		var rows []models.Account
		if err := tx.Where("id IN ?", []string{a, b}).Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			switch rows[i].ID {
			case a:
				outA = toDomain(&rows[i])
			case b:
				outB = toDomain(&rows[i])
			}
		}
		return nil
	})
	if err != nil {
		return relation.Account{}, relation.Account{}, storeError(err)
	}

	s.logger.Debug("Applied pair transaction",
		zap.String("a", a),
		zap.String("b", b),
		zap.Int64("a_followers", outA.Counts.Followers),
		zap.Int64("b_followers", outB.Counts.Followers))

	return outA, outB, nil
}

// lockAccounts selects both rows FOR UPDATE in id order so concurrent pair
// transactions over overlapping accounts cannot deadlock
func lockAccounts(tx *gorm.DB, a, b string) (map[string]*models.Account, error) {
	var rows []models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", []string{a, b}).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*models.Account, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// writeEdge moves the edge follower->followee from old to next
func writeEdge(tx *gorm.DB, follower, followee string, old, next relation.Status, now time.Time) error {
	if old == next {
		return nil
	}

	if old == relation.StatusNone {
		return tx.Create(&models.FollowEdge{
			FollowerID: follower,
			FolloweeID: followee,
			Status:     statusCode(next),
			CreatedAt:  now,
			UpdatedAt:  now,
		}).Error
	}

	scope := tx.Where("follower_id = ? AND followee_id = ? AND status = ?", follower, followee, statusCode(old))
	var res *gorm.DB
	if next == relation.StatusNone {
		res = scope.Delete(&models.FollowEdge{})
	} else {
		res = scope.Model(&models.FollowEdge{}).Updates(map[string]interface{}{
			"status":     statusCode(next),
			"updated_at": now,
		})
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("edge %s->%s changed underneath the transaction", follower, followee)
	}
	return nil
}

// addCounters applies a counter delta with in-place SQL arithmetic
func addCounters(tx *gorm.DB, id string, d relation.Counters, now time.Time) error {
	if d.IsZero() {
		return nil
	}
	updates := map[string]interface{}{"updated_at": now}
	if d.Followers != 0 {
		updates["follower_count"] = gorm.Expr("follower_count + ?", d.Followers)
	}
	if d.Following != 0 {
		updates["following_count"] = gorm.Expr("following_count + ?", d.Following)
	}
	if d.PendingOutgoing != 0 {
		updates["pending_outgoing_count"] = gorm.Expr("pending_outgoing_count + ?", d.PendingOutgoing)
	}
	if d.PendingIncoming != 0 {
		updates["pending_incoming_count"] = gorm.Expr("pending_incoming_count + ?", d.PendingIncoming)
	}
	return tx.Model(&models.Account{}).Where("id = ?", id).Updates(updates).Error
}

// pairState builds the state of (a, b) seen from a out of the pair's edges
func pairState(a string, edges []models.FollowEdge) relation.PairState {
	var st relation.PairState
	for _, e := range edges {
		if e.FollowerID == a {
			st.Outgoing = statusOf(e.Status)
		} else {
			st.Incoming = statusOf(e.Status)
		}
	}
	return st
}

func statusCode(s relation.Status) int16 {
	switch s {
	case relation.StatusPending:
		return models.FollowStatusPending
	case relation.StatusFollowing:
		return models.FollowStatusFollowing
	}
	return 0
}

func statusOf(code int16) relation.Status {
	switch code {
	case models.FollowStatusPending:
		return relation.StatusPending
	case models.FollowStatusFollowing:
		return relation.StatusFollowing
	}
	return relation.StatusNone
}

func toDomain(row *models.Account) relation.Account {
	return relation.Account{
		ID:          row.ID,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		Privacy:     relation.Privacy(row.Privacy),
		Counts: relation.Counters{
			Followers:       row.FollowerCount,
			Following:       row.FollowingCount,
			PendingOutgoing: row.PendingOutgoingCount,
			PendingIncoming: row.PendingIncomingCount,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func fromDomain(acct relation.Account) models.Account {
	return models.Account{
		ID:                   acct.ID,
		Username:             acct.Username,
		DisplayName:          acct.DisplayName,
		Privacy:              string(acct.Privacy),
		FollowerCount:        acct.Counts.Followers,
		FollowingCount:       acct.Counts.Following,
		PendingOutgoingCount: acct.Counts.PendingOutgoing,
		PendingIncomingCount: acct.Counts.PendingIncoming,
		CreatedAt:            acct.CreatedAt,
		UpdatedAt:            acct.UpdatedAt,
	}
}

// storeError tags infrastructure failures as relation.ErrStore so callers
// can retry them; business and context errors pass through
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case relation.IsTerminal(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", relation.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", relation.ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %w", relation.ErrStore, err)
}
