package cache

import (
	"context"
	"errors"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/rs/zerolog"
)

// Upstream looks up a profile live.
type Upstream interface {
	GetProfile(ctx context.Context, username string) (client.Profile, error)
}

// Store is the subset of Manager used by ProfileGetter.
type Store interface {
	Get(ctx context.Context, key ProfileKey) (*Entry, error)
	Set(ctx context.Context, key ProfileKey, profile client.Profile) error
}

// ProfileGetter serves profiles from a Store and falls back to Upstream.
type ProfileGetter struct {
	upstream Upstream
	store    Store
	logger   zerolog.Logger
}

// NewProfileGetter wraps upstream with a look-aside cache.
func NewProfileGetter(upstream Upstream, store Store) *ProfileGetter {
	return &ProfileGetter{
		upstream: upstream,
		store:    store,
		logger:   logging.NewLogger("profile-cache"),
	}
}

// GetProfile returns the cached profile for username, or fetches and caches it.
// Upstream errors are returned unchanged and never cached.
func (g *ProfileGetter) GetProfile(ctx context.Context, username string) (client.Profile, error) {
	key := ProfileKey{Username: username}

	entry, err := g.store.Get(ctx, key)
	switch {
	case err == nil:
		CacheHits.Inc()
		return entry.Profile, nil
	case errors.Is(err, ErrCacheMiss):
	default:
		g.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
	}
	CacheMisses.Inc()

	profile, err := g.upstream.GetProfile(ctx, username)
	if err != nil {
		return client.Profile{}, err
	}

	if err := g.store.Set(ctx, key, profile); err != nil {
		g.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}

	return profile, nil
}
