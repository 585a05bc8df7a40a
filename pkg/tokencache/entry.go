package tokencache

import (
	"time"
)

const (
	// DefaultTTL is the lifetime assumed for tokens that carry no expiry.
	DefaultTTL = 5 * time.Minute

	// ExpirySkew is subtracted from a token's expiry before caching.
	ExpirySkew = 30 * time.Second
)

// Entry represents a cached bearer token.
type Entry struct {
	AccessToken string `json:"access_token"`

	// Expiry is when the token stops being accepted (zero if unknown)
	Expiry time.Time `json:"expiry"`

	// CachedAt is when we cached this token
	CachedAt time.Time `json:"cached_at"`
}

// expiresAt is the moment the entry must no longer be served.
func (e *Entry) expiresAt() time.Time {
	if e.Expiry.IsZero() {
		return e.CachedAt.Add(DefaultTTL)
	}
	return e.Expiry.Add(-ExpirySkew)
}

// IsExpired returns true if the entry must not be served anymore.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.expiresAt())
}

// TTL returns the time until the entry expires.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.expiresAt())
	if ttl < 0 {
		return 0
	}
	return ttl
}
