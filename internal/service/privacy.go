package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
)

// PrivacyResult is the outcome of a privacy change. Accepted lists the
// requesters whose pending requests were drained into follows; Skipped
// lists those whose request or account was gone by the time the drain
// reached them
type PrivacyResult struct {
	Account  relation.Account `json:"account"`
	Accepted []string         `json:"accepted"`
	Skipped  []string         `json:"skipped"`
}

// SetPrivacy sets the privacy flag of id. Going public accepts every
// pending incoming request, one pair at a time
func (s *Service) SetPrivacy(ctx context.Context, id string, p relation.Privacy) (res PrivacyResult, err error) {
	ctx, done := s.startOp(ctx, "set_privacy",
		attribute.String("account", id),
		attribute.String("privacy", string(p)))
	defer func() { done(err) }()

	if id == "" {
		return PrivacyResult{}, fmt.Errorf("%w: account id must not be empty", relation.ErrInvalidArgument)
	}
	if !p.Valid() {
		return PrivacyResult{}, fmt.Errorf("%w: privacy %q", relation.ErrInvalidArgument, p)
	}
	return s.setPrivacy(ctx, id, p)
}

// TogglePrivacy flips the privacy flag of id
func (s *Service) TogglePrivacy(ctx context.Context, id string) (res PrivacyResult, err error) {
	ctx, done := s.startOp(ctx, "toggle_privacy", attribute.String("account", id))
	defer func() { done(err) }()

	acct, err := s.loadAccount(ctx, id)
	if err != nil {
		return PrivacyResult{}, err
	}
	return s.setPrivacy(ctx, id, acct.Privacy.Opposite())
}

func (s *Service) setPrivacy(ctx context.Context, id string, p relation.Privacy) (PrivacyResult, error) {
	// The flag flips first so no new pending request can land on a public
	// account while the drain runs
	acct, err := retry(ctx, s, "set_privacy", func() (relation.Account, error) {
		return s.store.SetPrivacy(ctx, id, p)
	})
	if err != nil {
		return PrivacyResult{}, err
	}
	s.invalidate(ctx, id)

	res := PrivacyResult{Account: acct, Accepted: []string{}, Skipped: []string{}}
	if p == relation.PrivacyPublic {
		if err := s.drainPending(ctx, id, &res); err != nil {
			return res, err
		}
	}

	s.log(ctx).Info("Privacy changed",
		zap.String("account", id),
		zap.String("privacy", string(p)),
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// drainPending accepts every pending incoming request of id into res
func (s *Service) drainPending(ctx context.Context, id string, res *PrivacyResult) error {
	pending, err := retry(ctx, s, "list_pending", func() ([]string, error) {
		return s.store.ListMembers(ctx, id, relation.PendingIncoming, 0, 0)
	})
	if err != nil {
		return fmt.Errorf("failed to list pending requests of %s: %w", id, err)
	}

	for _, requester := range pending {
		_, err := retry(ctx, s, "drain_accept", func() (PairResult, error) {
			return s.applyTransition(ctx, relation.ActionAccept, id, requester)
		})
		switch {
		case err == nil:
			res.Accepted = append(res.Accepted, requester)
			s.invalidate(ctx, requester)
		case errors.Is(err, relation.ErrNotFound):
			res.Skipped = append(res.Skipped, requester)
			s.log(ctx).Warn("Skipping pending request during privacy drain",
				zap.String("account", id),
				zap.String("requester", requester),
				zap.Error(err))
		default:
			return fmt.Errorf("privacy drain of %s stopped at %s: %w", id, requester, err)
		}
	}

	if len(pending) > 0 {
		if res.Account, err = s.loadAccount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
