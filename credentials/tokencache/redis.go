// Package tokencache provides TokenCache implementations for sharing a
// signed APNs provider token across more than one process.
package tokencache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a credentials.TokenCache backed by a Redis key, so every
// dispatcher process signing for the same team/key shares one token
// instead of each minting its own within the same lifetime window.
type Redis struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

// NewRedis builds a Redis-backed token cache at the given key. ctx bounds
// the Get/Set round-trips; pass context.Background() for no deadline.
func NewRedis(ctx context.Context, client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key, ctx: ctx}
}

// Get implements credentials.TokenCache.
func (r *Redis) Get() (token string, issuedAt time.Time, ok bool) {
	val, err := r.client.Get(r.ctx, r.key).Result()
	if err != nil {
		return "", time.Time{}, false
	}
	issuedAtStr, jwt, found := strings.Cut(val, "|")
	if !found {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(issuedAtStr, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return jwt, time.Unix(unix, 0), true
}

// Set implements credentials.TokenCache. The entry is given a generous TTL
// so it self-cleans even if no process ever calls Set again for this key.
func (r *Redis) Set(token string, issuedAt time.Time) {
	val := strconv.FormatInt(issuedAt.Unix(), 10) + "|" + token
	r.client.Set(r.ctx, r.key, val, time.Hour)
}
