// Package cache adds cache-aside behaviour to any evidence adapter on top of a
// pluggable TTL key-value store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultNamespace prefixes keys for reputation evidence.
const DefaultNamespace = "reputation"

// Store is a TTL key-value store. Implementations are safe for concurrent
// use. Get never returns an entry whose expiry is at or before now, and
// removes such entries when it finds them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes every expired entry and reports how many went.
	DeleteExpired(ctx context.Context) (int, error)
}

// Key derives a bounded-length key from namespace and parts. The namespace
// stays readable so operators can scan or purge by prefix.
func Key(namespace string, parts ...string) string {
	raw := strings.Join(append([]string{namespace}, parts...), "|")
	sum := sha256.Sum256([]byte(raw))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
