// Package memstore is an in-memory account store. It keeps full
// relationship sets per account and serializes pair transactions under one
// lock, which makes it the reference model for invariant tests and the
// backend for local runs without PostgreSQL
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitsocial/followgraph/internal/relation"
)

// Store holds account records in memory
type Store struct {
	mu      sync.RWMutex
	records map[string]*relation.Record
	now     func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		records: make(map[string]*relation.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount inserts a zero-state account
func (s *Store) CreateAccount(ctx context.Context, acct relation.Account) (relation.Account, error) {
	if err := ctx.Err(); err != nil {
		return relation.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[acct.ID]; ok {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrAlreadyExists, acct.ID)
	}
	for _, r := range s.records {
		if r.Account.Username == acct.Username {
			return relation.Account{}, fmt.Errorf("%w: username %s", relation.ErrAlreadyExists, acct.Username)
		}
	}
	now := s.now()
	acct.Counts = relation.Counters{}
	acct.CreatedAt, acct.UpdatedAt = now, now
	s.records[acct.ID] = &relation.Record{Account: acct, Sets: relation.NewSets()}
	return acct, nil
}

// LoadAccount returns the account with id
func (s *Store) LoadAccount(ctx context.Context, id string) (relation.Account, error) {
	if err := ctx.Err(); err != nil {
		return relation.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	return r.Account, nil
}

// SetPrivacy updates the privacy flag of one account
func (s *Store) SetPrivacy(ctx context.Context, id string, p relation.Privacy) (relation.Account, error) {
	if err := ctx.Err(); err != nil {
		return relation.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	r.Account.Privacy = p
	r.Account.UpdatedAt = s.now()
	return r.Account, nil
}

// UpdateProfile changes the username and display name of one account.
// Empty values leave the field as is
func (s *Store) UpdateProfile(ctx context.Context, id, username, displayName string) (relation.Account, error) {
	if err := ctx.Err(); err != nil {
		return relation.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	if username != "" && username != r.Account.Username {
		for other, o := range s.records {
			if other != id && o.Account.Username == username {
				return relation.Account{}, fmt.Errorf("%w: username %s", relation.ErrAlreadyExists, username)
			}
		}
		r.Account.Username = username
	}
	if displayName != "" {
		r.Account.DisplayName = displayName
	}
	r.Account.UpdatedAt = s.now()
	return r.Account, nil
}

// QueryRelationshipState returns the pair state of (a, b) seen from a.
// Unknown accounts relate to nobody
func (s *Store) QueryRelationshipState(ctx context.Context, a, b string) (relation.PairState, error) {
	if err := ctx.Err(); err != nil {
		return relation.PairState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[a]
	if !ok {
		return relation.PairState{}, nil
	}
	return relation.StateOf(r.Sets, b), nil
}

// ApplyPairTransaction runs mutate against the current pair and applies
// both resulting mutations, or neither
func (s *Store) ApplyPairTransaction(ctx context.Context, a, b string, mutate relation.PairMutator) (relation.Account, relation.Account, error) {
	if err := ctx.Err(); err != nil {
		return relation.Account{}, relation.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.records[a]
	if !ok {
		return relation.Account{}, relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, a)
	}
	rb, ok := s.records[b]
	if !ok {
		return relation.Account{}, relation.Account{}, fmt.Errorf("%w: account %s", relation.ErrNotFound, b)
	}

	ma, mb, err := mutate(relation.PairView{A: ra.Account, B: rb.Account, State: relation.StateOf(ra.Sets, b)})
	if err != nil {
		return relation.Account{}, relation.Account{}, err
	}
	if a == b {
		return relation.Account{}, relation.Account{}, fmt.Errorf("%w: pair of %s with itself", relation.ErrSelfReference, a)
	}
	if ma.Peer != b || mb.Peer != a {
		return relation.Account{}, relation.Account{}, fmt.Errorf("%w: mutation peers %s/%s do not match pair %s/%s",
			relation.ErrInvalidTransition, ma.Peer, mb.Peer, a, b)
	}

	// Stage on copies so a failing second mutation leaves the first record
	// untouched
	na, nb := ra.Clone(), rb.Clone()
	if err := na.Sets.Apply(ma); err != nil {
		return relation.Account{}, relation.Account{}, err
	}
	if err := nb.Sets.Apply(mb); err != nil {
		return relation.Account{}, relation.Account{}, err
	}
	now := s.now()
	if !ma.IsZero() {
		na.Account.Counts = na.Account.Counts.Add(ma.Delta())
		na.Account.UpdatedAt = now
	}
	if !mb.IsZero() {
		nb.Account.Counts = nb.Account.Counts.Add(mb.Delta())
		nb.Account.UpdatedAt = now
	}
	s.records[a], s.records[b] = na, nb
	return na.Account, nb.Account, nil
}

// ListMembers returns a slice of one relationship set in ascending id
// order. A non-positive limit returns everything from offset on
func (s *Store) ListMembers(ctx context.Context, id string, kind relation.SetKind, offset, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", relation.ErrNotFound, id)
	}
	set := r.Sets.Of(kind)
	if set == nil {
		return nil, fmt.Errorf("%w: unknown set %d", relation.ErrInvalidArgument, kind)
	}
	ids := set.Sorted()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return []string{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// Snapshot returns a deep copy of every record
func (s *Store) Snapshot() map[string]*relation.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*relation.Record, len(s.records))
	for id, r := range s.records {
		out[id] = r.Clone()
	}
	return out
}

// Health always succeeds for the in-memory store
func (s *Store) Health(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
