package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultKeyPrefix = "wirechat:user:"

// CachedResolver fronts another Resolver with a Redis cache-aside layer.
// Concurrent misses for the same id are coalesced. Redis failures are logged
// and fall through to the underlying resolver.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	log    *zerolog.Logger
}

// NewCachedResolver wraps next with a cache stored in client.
func NewCachedResolver(next Resolver, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *CachedResolver {
	return &CachedResolver{
		next:   next,
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		log:    logger,
	}
}

// Resolve implements Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, userID string) (User, error) {
	key := c.prefix + userID

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u User
		if jsonErr := json.Unmarshal(data, &u); jsonErr == nil {
			return u, nil
		}
		c.log.Warn().Str("user_id", userID).Msg("discarding malformed cached identity")
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Str("user_id", userID).Msg("identity cache get failed")
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		u, err := c.next.Resolve(ctx, userID)
		if err != nil {
			return User{}, err
		}
		c.store(ctx, key, u)
		return u, nil
	})
	if err != nil {
		return User{}, err
	}
	return v.(User), nil
}

// Invalidate drops the cached entry for userID.
func (c *CachedResolver) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.prefix+userID).Err()
}

func (c *CachedResolver) store(ctx context.Context, key string, u User) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", u.ID).Msg("identity cache set failed")
	}
}
