// Package cache stores upstream responses (crt.sh today) so repeated runs
// against the same domain do not hammer the source.
package cache

import (
	"context"
	"strings"
	"time"
)

const (
	// KeyPrefixCT is the prefix for Certificate Transparency response keys.
	KeyPrefixCT = "orbit:ct:"

	// DefaultTTL is how long a CT response stays fresh.
	DefaultTTL = 6 * time.Hour
)

// Cache is a byte-value store with per-key expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// CTKey returns the cache key for a CT query on domain.
func CTKey(domain string) string {
	return KeyPrefixCT + strings.ToLower(strings.TrimSpace(domain))
}
