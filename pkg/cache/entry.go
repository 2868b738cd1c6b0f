package cache

import (
	"time"

	"github.com/Sternrassler/igdump/pkg/client"
)

// Entry is a cached profile.
type Entry struct {
	// Profile is the profile as decoded from the API.
	Profile client.Profile `json:"profile"`

	// CachedAt is when the profile was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}
