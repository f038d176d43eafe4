package plans

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/planwatch/edge/internal/domain"
)

// Directory resolves the plan list bound to a hostname.
type Directory interface {
	PlansForHostname(ctx context.Context, hostname string) ([]*domain.Plan, error)
}

// CachedDirectory fronts a Source with the query-result cache and collapses
// concurrent lookups for the same hostname into one backend query. An empty
// result is cached like any other; staleness within the TTL is tolerated by
// design, correctness depends only on the returned content.
type CachedDirectory struct {
	source Source
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
}

func NewCachedDirectory(source Source, cache Cache, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{source: source, cache: cache, ttl: ttl}
}

// PlansForHostname returns the plans bound to hostname, from cache when
// possible. Plans whose domain binding is for a different hostname are
// filtered out defensively even though the backend query is already keyed
// by hostname.
func (d *CachedDirectory) PlansForHostname(ctx context.Context, hostname string) ([]*domain.Plan, error) {
	hostname = strings.ToLower(hostname)
	key := cacheKey(hostname)

	if b, ok, err := d.cache.Get(ctx, key); err == nil && ok {
		var cached []*domain.Plan
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
		// Undecodable entry: drop it and fall through to a fresh fetch.
		_ = d.cache.Delete(ctx, key)
	}

	v, err, _ := d.group.Do(hostname, func() (any, error) {
		// The fetch is shared between coalesced callers; detach it from the
		// first caller's cancellation.
		fctx := context.WithoutCancel(ctx)

		fetched, err := d.source.PlansForHostname(fctx, hostname)
		if err != nil {
			return nil, err
		}

		matched := make([]*domain.Plan, 0, len(fetched))
		for _, p := range fetched {
			if p.MatchesHostname(hostname) {
				matched = append(matched, p)
			}
		}

		if b, err := json.Marshal(matched); err == nil {
			_ = d.cache.Set(fctx, key, b, d.ttl)
		}
		return matched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Plan), nil
}

// Purge drops the cached directory entry for a hostname.
func (d *CachedDirectory) Purge(ctx context.Context, hostname string) error {
	hostname = strings.ToLower(hostname)
	d.group.Forget(hostname)
	return d.cache.Delete(ctx, cacheKey(hostname))
}

// Stats reports cache effectiveness when the underlying cache tracks it.
func (d *CachedDirectory) Stats() CacheStats {
	if s, ok := d.cache.(interface{ Stats() CacheStats }); ok {
		return s.Stats()
	}
	return CacheStats{}
}

func cacheKey(hostname string) string {
	return "plans:" + hostname
}
