// Package token issues and checks the opaque confirmation tokens mailed to
// customers. A token is 128 bits from crypto/rand, hex-encoded; uniqueness is
// probabilistic and lookups are by exact match.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const rawLen = 16 // bytes of entropy; hex-encodes to 32 chars

const DefaultTTL = 72 * time.Hour

// Issue generates a fresh token and its expiry instant.
func Issue(now time.Time, ttl time.Duration) (string, time.Time) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	var b [rawLen]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:]), now.Add(ttl).UTC()
}

// Expired reports whether a token with the given expiry is stale at now.
// A nil expiry never expires; expiry is evaluated at validation time only.
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}
