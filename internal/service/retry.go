package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
)

// retry runs op until it succeeds, fails with anything but a store error,
// or runs out of attempts. op must redo its whole load-guard-apply sequence
func retry[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 10 * time.Millisecond
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := fn()
		if err != nil && !errors.Is(err, relation.ErrStore) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.opts.RetryAttempts)),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.metrics.retries.Add(ctx, 1)
			s.logger.Warn("Retrying store operation",
				zap.String("operation", op),
				zap.Duration("backoff", d),
				zap.Error(err))
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return res, err
}
