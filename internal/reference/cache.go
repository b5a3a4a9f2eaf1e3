package reference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedValidator caches positive verification results in Redis for a bounded
// TTL. Failures are never cached: a miss, an expired entry, or an unreachable
// cache all fall through to a live check, preserving fail-closed semantics.
type CachedValidator struct {
	next   Validator
	client *redis.Client
	ttl    time.Duration
}

// NewCached wraps a validator with a Redis-backed positive-result cache.
func NewCached(next Validator, client *redis.Client, ttl time.Duration) *CachedValidator {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &CachedValidator{next: next, client: client, ttl: ttl}
}

// Validate returns a cached positive result when present, otherwise performs
// a live check and caches it only if valid.
func (v *CachedValidator) Validate(ctx context.Context, ref Reference) Result {
	key := cacheKey(ref)
	if v.client != nil {
		if val, err := v.client.Get(ctx, key).Result(); err == nil && val == "1" {
			return Result{Valid: true, Details: "verified (cached)"}
		}
	}
	res := v.next.Validate(ctx, ref)
	if res.Valid && v.client != nil {
		// Cache write is best-effort; a failed SET just means a live
		// check next time.
		_ = v.client.Set(ctx, key, "1", v.ttl).Err()
	}
	return res
}

func cacheKey(ref Reference) string {
	sum := sha256.Sum256([]byte(string(ref.Kind) + "\x00" + ref.Value))
	return "reference:valid:" + hex.EncodeToString(sum[:])
}
