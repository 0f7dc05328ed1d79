package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// VisibilityEntry is the result of a visibility lookup. Generation must be
// passed back to Store so that an answer computed before an invalidation
// is never served after it
type VisibilityEntry struct {
	Visible    bool
	Found      bool
	Generation int64
}

// VisibilityCache memoizes CanView answers per (viewer, target). Entries of
// a target are dropped wholesale by bumping the target's generation
type VisibilityCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewVisibilityCache returns nil when c is disabled
func NewVisibilityCache(c *Cache, ttl time.Duration) *VisibilityCache {
	if !c.enabled() {
		return nil
	}
	return &VisibilityCache{cache: c, ttl: ttl}
}

func generationKey(target string) string {
	return "visgen:" + target
}

func entryKey(target string, gen int64, viewer string) string {
	return fmt.Sprintf("vis:%s:%d:%s", target, gen, viewer)
}

// Lookup returns the cached answer for viewer looking at target
func (v *VisibilityCache) Lookup(ctx context.Context, viewer, target string) (VisibilityEntry, error) {
	if v == nil {
		return VisibilityEntry{}, ErrCacheDisabled
	}

	var entry VisibilityEntry
	raw, err := v.cache.Get(ctx, generationKey(target))
	switch {
	case errors.Is(err, ErrMiss):
	case err != nil:
		return entry, err
	default:
		if entry.Generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return entry, fmt.Errorf("corrupt generation for %s: %w", target, err)
		}
	}

	raw, err = v.cache.Get(ctx, entryKey(target, entry.Generation, viewer))
	switch {
	case errors.Is(err, ErrMiss):
		return entry, nil
	case err != nil:
		return entry, err
	}
	entry.Found = true
	entry.Visible = raw == "1"
	return entry, nil
}

// Store records an answer under the generation returned by Lookup
func (v *VisibilityCache) Store(ctx context.Context, viewer, target string, gen int64, visible bool) error {
	if v == nil {
		return ErrCacheDisabled
	}
	val := "0"
	if visible {
		val = "1"
	}
	return v.cache.Set(ctx, entryKey(target, gen, viewer), val, v.ttl)
}

// Invalidate drops every cached answer about the given targets
func (v *VisibilityCache) Invalidate(ctx context.Context, targets ...string) error {
	if v == nil {
		return ErrCacheDisabled
	}
	var errs []error
	for _, t := range targets {
		if _, err := v.cache.Incr(ctx, generationKey(t)); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}
