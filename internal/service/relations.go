package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
)

// PairResult carries both accounts touched by a transition, actor first
type PairResult struct {
	Actor  relation.Account `json:"actor"`
	Target relation.Account `json:"target"`
	// State is the relationship after the transition, seen from the actor
	State relation.PairState `json:"state"`
}

// SendFollowRequest follows target, or leaves a pending request when
// target is private
func (s *Service) SendFollowRequest(ctx context.Context, actor, target string) (PairResult, error) {
	return s.transition(ctx, relation.ActionRequestFollow, actor, target)
}

// CancelFollowRequest withdraws actor's pending request to target
func (s *Service) CancelFollowRequest(ctx context.Context, actor, target string) (PairResult, error) {
	return s.transition(ctx, relation.ActionCancelRequest, actor, target)
}

// AcceptFollowRequest turns the pending request from requester into a follow
func (s *Service) AcceptFollowRequest(ctx context.Context, actor, requester string) (PairResult, error) {
	return s.transition(ctx, relation.ActionAccept, actor, requester)
}

// DeclineFollowRequest drops the pending request from requester
func (s *Service) DeclineFollowRequest(ctx context.Context, actor, requester string) (PairResult, error) {
	return s.transition(ctx, relation.ActionDecline, actor, requester)
}

// Unfollow stops actor following target
func (s *Service) Unfollow(ctx context.Context, actor, target string) (PairResult, error) {
	return s.transition(ctx, relation.ActionUnfollow, actor, target)
}

// RemoveFollower stops follower following actor
func (s *Service) RemoveFollower(ctx context.Context, actor, follower string) (PairResult, error) {
	return s.transition(ctx, relation.ActionRemoveFollower, actor, follower)
}

func (s *Service) transition(ctx context.Context, action relation.Action, actor, target string) (res PairResult, err error) {
	ctx, done := s.startOp(ctx, action.String(),
		attribute.String("actor", actor),
		attribute.String("target", target))
	defer func() {
		done(err)
		s.metrics.transitions.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("action", action.String()),
			attribute.String("outcome", outcome(err)),
		))
	}()

	if err := checkPair(actor, target); err != nil {
		return PairResult{}, err
	}

	res, err = retry(ctx, s, action.String(), func() (PairResult, error) {
		return s.applyTransition(ctx, action, actor, target)
	})
	if err != nil {
		return PairResult{}, err
	}

	s.invalidate(ctx, actor, target)
	s.log(ctx).Debug("Transition applied",
		zap.Stringer("action", action),
		zap.String("actor", actor),
		zap.String("target", target),
		zap.Stringer("state", res.State.Named()))
	return res, nil
}

// applyTransition is one attempt: the guard runs inside the store's atomic
// scope against the locked pair
func (s *Service) applyTransition(ctx context.Context, action relation.Action, actor, target string) (PairResult, error) {
	var planned relation.Transition
	a, b, err := s.store.ApplyPairTransaction(ctx, actor, target, func(view relation.PairView) (relation.Mutation, relation.Mutation, error) {
		t, err := relation.Plan(action, view.A.ID, view.B.ID, view.B.Privacy, view.State)
		if err != nil {
			return relation.Mutation{}, relation.Mutation{}, err
		}
		planned = t
		return t.ActorMutation, t.TargetMutation, nil
	})
	if err != nil {
		// Resolving an absent request or follow reports the relationship as
		// not found
		if action != relation.ActionRequestFollow && errors.Is(err, relation.ErrInvalidTransition) {
			return PairResult{}, fmt.Errorf("%w: %v", relation.ErrNotFound, err)
		}
		return PairResult{}, err
	}
	return PairResult{Actor: a, Target: b, State: planned.To}, nil
}

func checkPair(actor, target string) error {
	if actor == "" || target == "" {
		return fmt.Errorf("%w: account ids must not be empty", relation.ErrInvalidArgument)
	}
	if actor == target {
		return fmt.Errorf("%w: %s", relation.ErrSelfReference, actor)
	}
	return nil
}
