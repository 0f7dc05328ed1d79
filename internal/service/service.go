// Package service implements the relationship service: follow request
// transitions, the privacy toggle drain, visibility and membership reads
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/cache"
	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/config"
	"github.com/fitsocial/followgraph/pkg/logging"
)

// Store is the account record store the service runs on
type Store interface {
	CreateAccount(ctx context.Context, acct relation.Account) (relation.Account, error)
	LoadAccount(ctx context.Context, id string) (relation.Account, error)
	SetPrivacy(ctx context.Context, id string, p relation.Privacy) (relation.Account, error)
	UpdateProfile(ctx context.Context, id, username, displayName string) (relation.Account, error)
	QueryRelationshipState(ctx context.Context, a, b string) (relation.PairState, error)
	ApplyPairTransaction(ctx context.Context, a, b string, mutate relation.PairMutator) (relation.Account, relation.Account, error)
	ListMembers(ctx context.Context, id string, kind relation.SetKind, offset, limit int) ([]string, error)
}

// VisibilityCache memoizes visibility decisions
type VisibilityCache interface {
	Lookup(ctx context.Context, viewer, target string) (cache.VisibilityEntry, error)
	Store(ctx context.Context, viewer, target string, gen int64, visible bool) error
	Invalidate(ctx context.Context, targets ...string) error
}

// Options tunes retries and list paging
type Options struct {
	RetryAttempts        int
	RetryInitialInterval time.Duration
	ListDefaultLimit     int
	ListMaxLimit         int
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		RetryAttempts:        3,
		RetryInitialInterval: 50 * time.Millisecond,
		ListDefaultLimit:     50,
		ListMaxLimit:         500,
	}
}

// OptionsFromConfig builds options from the relations config section
func OptionsFromConfig(cfg *config.RelationsConfig) Options {
	return Options{
		RetryAttempts:        cfg.RetryAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		ListDefaultLimit:     cfg.ListDefaultLimit,
		ListMaxLimit:         cfg.ListMaxLimit,
	}
}

// Service is the relationship service
type Service struct {
	store   Store
	cache   VisibilityCache
	opts    Options
	logger  *zap.Logger
	metrics *metrics
}

// Option configures a Service
type Option func(*Service)

// WithVisibilityCache enables visibility caching
func WithVisibilityCache(c VisibilityCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithOptions overrides DefaultOptions
func WithOptions(o Options) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// New creates the service on store
func New(store Store, options ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		opts:   DefaultOptions(),
		logger: logging.WithComponent("relations"),
	}
	for _, o := range options {
		o(s)
	}
	if s.opts.RetryAttempts < 1 {
		s.opts.RetryAttempts = 1
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// log returns the service logger annotated with the trace of ctx
func (s *Service) log(ctx context.Context) *zap.Logger {
	return s.logger.With(logging.TraceFields(ctx)...)
}

// invalidate drops cached visibility of the touched accounts. On failure
// stale entries live until their TTL
func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate visibility cache", zap.Strings("accounts", ids), zap.Error(err))
	}
}
