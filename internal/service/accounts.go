package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
)

const minUsernameLength = 3

// MemberPage is a slice of one relationship set plus the set's size
type MemberPage struct {
	IDs    []string `json:"ids"`
	Total  int64    `json:"total"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

// FollowStatus describes the relationship of actor and target in both
// directions
type FollowStatus struct {
	Target      string             `json:"target"`
	State       relation.PairState `json:"state"`
	Following   bool               `json:"following"`
	FollowedBy  bool               `json:"followed_by"`
	Requested   bool               `json:"requested"`
	RequestedBy bool               `json:"requested_by"`
	Mutual      bool               `json:"mutual"`
}

// ProvisionAccount creates the zero-state record of a newly registered
// account. An empty privacy defaults to public
func (s *Service) ProvisionAccount(ctx context.Context, acct relation.Account) (out relation.Account, err error) {
	ctx, done := s.startOp(ctx, "provision", attribute.String("account", acct.ID))
	defer func() { done(err) }()

	if acct.ID == "" {
		return relation.Account{}, fmt.Errorf("%w: account id must not be empty", relation.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(acct.Username) < minUsernameLength {
		return relation.Account{}, fmt.Errorf("%w: username must have at least %d characters", relation.ErrInvalidArgument, minUsernameLength)
	}
	if acct.Privacy == "" {
		acct.Privacy = relation.PrivacyPublic
	}
	if !acct.Privacy.Valid() {
		return relation.Account{}, fmt.Errorf("%w: privacy %q", relation.ErrInvalidArgument, acct.Privacy)
	}
	acct.Counts = relation.Counters{}

	out, err = s.store.CreateAccount(ctx, acct)
	if err != nil {
		return relation.Account{}, err
	}
	s.log(ctx).Info("Account provisioned", zap.String("account", out.ID), zap.String("privacy", string(out.Privacy)))
	return out, nil
}

// UpdateProfile changes the caller's username and display name. An empty
// value keeps the current one
func (s *Service) UpdateProfile(ctx context.Context, actor, username, displayName string) (out relation.Account, err error) {
	ctx, done := s.startOp(ctx, "update_profile", attribute.String("account", actor))
	defer func() { done(err) }()

	if actor == "" {
		return relation.Account{}, fmt.Errorf("%w: account id must not be empty", relation.ErrInvalidArgument)
	}
	if username == "" && displayName == "" {
		return relation.Account{}, fmt.Errorf("%w: nothing to update", relation.ErrInvalidArgument)
	}
	if username != "" && utf8.RuneCountInString(username) < minUsernameLength {
		return relation.Account{}, fmt.Errorf("%w: username must have at least %d characters", relation.ErrInvalidArgument, minUsernameLength)
	}

	out, err = retry(ctx, s, "update_profile", func() (relation.Account, error) {
		return s.store.UpdateProfile(ctx, actor, username, displayName)
	})
	if err != nil {
		return relation.Account{}, err
	}
	s.log(ctx).Info("Profile updated",
		zap.String("account", out.ID),
		zap.String("username", out.Username))
	return out, nil
}

// GetOwnAccount returns the caller's own account
func (s *Service) GetOwnAccount(ctx context.Context, actor string) (out relation.Account, err error) {
	ctx, done := s.startOp(ctx, "get_own_account", attribute.String("account", actor))
	defer func() { done(err) }()

	return s.loadAccount(ctx, actor)
}

// GetAccount returns id as seen by viewer, or ErrForbidden when viewer may
// not see it
func (s *Service) GetAccount(ctx context.Context, viewer, id string) (out relation.Account, err error) {
	ctx, done := s.startOp(ctx, "get_account",
		attribute.String("viewer", viewer),
		attribute.String("target", id))
	defer func() { done(err) }()

	visible, err := s.canView(ctx, viewer, id)
	if err != nil {
		return relation.Account{}, err
	}
	if !visible {
		return relation.Account{}, fmt.Errorf("%w: %s may not view %s", relation.ErrForbidden, viewer, id)
	}
	return s.loadAccount(ctx, id)
}

// CanView reports whether viewer may see target's content. An empty viewer
// is anonymous
func (s *Service) CanView(ctx context.Context, viewer, target string) (visible bool, err error) {
	ctx, done := s.startOp(ctx, "can_view",
		attribute.String("viewer", viewer),
		attribute.String("target", target))
	defer func() { done(err) }()

	return s.canView(ctx, viewer, target)
}

func (s *Service) canView(ctx context.Context, viewer, target string) (bool, error) {
	if target == "" {
		return false, fmt.Errorf("%w: target must not be empty", relation.ErrInvalidArgument)
	}

	// The generation is read before the account so an answer computed from
	// data older than an invalidation is filed under the old generation
	cached := s.cache != nil && viewer != "" && viewer != target
	var gen int64
	if cached {
		entry, err := s.cache.Lookup(ctx, viewer, target)
		switch {
		case err != nil:
			s.logger.Debug("Visibility cache lookup failed", zap.Error(err))
			cached = false
		case entry.Found:
			return entry.Visible, nil
		default:
			gen = entry.Generation
		}
	}

	acct, err := s.loadAccount(ctx, target)
	if err != nil {
		return false, err
	}

	var state relation.PairState
	if viewer != "" && viewer != target && acct.Privacy == relation.PrivacyPrivate {
		state, err = retry(ctx, s, "query_state", func() (relation.PairState, error) {
			return s.store.QueryRelationshipState(ctx, viewer, target)
		})
		if err != nil {
			return false, err
		}
	}
	visible := relation.CanView(viewer, target, acct.Privacy, state)

	if cached {
		if err := s.cache.Store(ctx, viewer, target, gen, visible); err != nil {
			s.logger.Debug("Visibility cache store failed", zap.Error(err))
		}
	}
	return visible, nil
}

// FollowStatus returns the relationship of actor and target
func (s *Service) FollowStatus(ctx context.Context, actor, target string) (out FollowStatus, err error) {
	ctx, done := s.startOp(ctx, "follow_status",
		attribute.String("actor", actor),
		attribute.String("target", target))
	defer func() { done(err) }()

	if err := checkPair(actor, target); err != nil {
		return FollowStatus{}, err
	}
	if _, err := s.loadAccount(ctx, target); err != nil {
		return FollowStatus{}, err
	}
	state, err := retry(ctx, s, "query_state", func() (relation.PairState, error) {
		return s.store.QueryRelationshipState(ctx, actor, target)
	})
	if err != nil {
		return FollowStatus{}, err
	}

	return FollowStatus{
		Target:      target,
		State:       state,
		Following:   state.Outgoing == relation.StatusFollowing,
		FollowedBy:  state.Incoming == relation.StatusFollowing,
		Requested:   state.Outgoing == relation.StatusPending,
		RequestedBy: state.Incoming == relation.StatusPending,
		Mutual:      state.Outgoing == relation.StatusFollowing && state.Incoming == relation.StatusFollowing,
	}, nil
}

// ListFollowers pages through the accounts following actor
func (s *Service) ListFollowers(ctx context.Context, actor string, offset, limit int) (MemberPage, error) {
	return s.list(ctx, actor, relation.Followers, offset, limit)
}

// ListFollowing pages through the accounts actor follows
func (s *Service) ListFollowing(ctx context.Context, actor string, offset, limit int) (MemberPage, error) {
	return s.list(ctx, actor, relation.Following, offset, limit)
}

// ListSentRequests pages through actor's pending outgoing requests
func (s *Service) ListSentRequests(ctx context.Context, actor string, offset, limit int) (MemberPage, error) {
	return s.list(ctx, actor, relation.PendingOutgoing, offset, limit)
}

// ListReceivedRequests pages through the pending requests actor received
func (s *Service) ListReceivedRequests(ctx context.Context, actor string, offset, limit int) (MemberPage, error) {
	return s.list(ctx, actor, relation.PendingIncoming, offset, limit)
}

func (s *Service) list(ctx context.Context, actor string, kind relation.SetKind, offset, limit int) (page MemberPage, err error) {
	ctx, done := s.startOp(ctx, "list_"+kind.String(), attribute.String("account", actor))
	defer func() { done(err) }()

	if offset < 0 {
		return MemberPage{}, fmt.Errorf("%w: negative offset", relation.ErrInvalidArgument)
	}
	switch {
	case limit <= 0:
		limit = s.opts.ListDefaultLimit
	case s.opts.ListMaxLimit > 0 && limit > s.opts.ListMaxLimit:
		limit = s.opts.ListMaxLimit
	}

	acct, err := s.loadAccount(ctx, actor)
	if err != nil {
		return MemberPage{}, err
	}
	ids, err := retry(ctx, s, "list_members", func() ([]string, error) {
		return s.store.ListMembers(ctx, actor, kind, offset, limit)
	})
	if err != nil {
		return MemberPage{}, err
	}
	return MemberPage{IDs: ids, Total: acct.Counts.Get(kind), Offset: offset, Limit: limit}, nil
}

func (s *Service) loadAccount(ctx context.Context, id string) (relation.Account, error) {
	if id == "" {
		return relation.Account{}, fmt.Errorf("%w: account id must not be empty", relation.ErrInvalidArgument)
	}
	return retry(ctx, s, "load_account", func() (relation.Account, error) {
		return s.store.LoadAccount(ctx, id)
	})
}
