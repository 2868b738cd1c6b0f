// Package cache provides a Redis look-aside cache for Instagram profiles.
//
// Instagram sends no usable cache headers, so entries live for a fixed TTL
// chosen by the caller. The cache sits in front of profile enrichment only;
// following pages are always fetched live.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 6*time.Hour)
//
//	getter := cache.NewProfileGetter(igClient, manager)
//	profile, err := getter.GetProfile(ctx, "someone")
//
// A cache failure never fails a lookup: the getter logs it and asks the
// upstream client instead.
//
// # Metrics
//
//   - igdump_cache_hits_total - Profiles served from Redis
//   - igdump_cache_misses_total - Profiles fetched upstream
//   - igdump_cache_errors_total{operation} - Redis operation errors
package cache
