package cache

import "strings"

// keyPrefix namespaces every igdump key in Redis.
const keyPrefix = "igdump:profile:"

// ProfileKey identifies a cached profile.
type ProfileKey struct {
	Username string
}

// String returns the Redis key, e.g. igdump:profile:someone.
//
// Usernames are case-insensitive on Instagram, so the key is lowercased.
func (k ProfileKey) String() string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(k.Username))
}
