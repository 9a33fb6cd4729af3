package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// denyPrefix namespaces blacklist keys so the database can be shared with
// the rate limiter.
const denyPrefix = "bl:"

// DenylistRepo is the revocation ledger for access tokens. Logout inserts
// the literal token with a TTL equal to its remaining lifetime; Redis
// expires the key at the moment the token would have died anyway, so no
// cleanup job is needed. Because entries live in Redis rather than
// process memory, every instance of the service shares one ledger.
type DenylistRepo struct{ RDB *redis.Client }

func NewDenylistRepo(rdb *redis.Client) *DenylistRepo { return &DenylistRepo{RDB: rdb} }

// Deny records token as revoked for exactly ttl. A non-positive ttl means
// the token has already expired on its own and nothing is written.
func (r *DenylistRepo) Deny(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.RDB.Set(ctx, denyPrefix+token, "1", ttl).Err()
}

// IsDenied reports whether token was revoked before its natural expiry.
func (r *DenylistRepo) IsDenied(ctx context.Context, token string) (bool, error) {
	n, err := r.RDB.Exists(ctx, denyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
