package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	mutationKeyPrefix = "mutation:"
	pendingMarker     = "pending"
	idempotencyKeyTTL = 24 * time.Hour
	pendingClaimTTL   = 30 * time.Second
)

// releaseClaimScript drops the key only while it still holds the pending marker,
// so a stored result is never removed by a late release.
var releaseClaimScript = redis.NewScript(`
local key = KEYS[1]
local marker = ARGV[1]

local current = redis.call('GET', key)
if current == marker then
	return redis.call('DEL', key)
end

return 0
`)

type RedisAdapter struct {
	client    *redis.Client
	resultTTL time.Duration
	claimTTL  time.Duration
}

// NewRedisAdapter keeps stored results for resultTTL. A pending claim lives only
// for claimTTL, so a call that died before storing does not block retries for long.
func NewRedisAdapter(client *redis.Client, resultTTL, claimTTL time.Duration) *RedisAdapter {
	if resultTTL <= 0 {
		resultTTL = idempotencyKeyTTL
	}
	if claimTTL <= 0 {
		claimTTL = pendingClaimTTL
	}
	return &RedisAdapter{client: client, resultTTL: resultTTL, claimTTL: claimTTL}
}

var _ port.MutationCache = (*RedisAdapter)(nil)

func (r *RedisAdapter) Load(ctx context.Context, key string) (*domain.StoredMutation, bool, error) {
	raw, err := r.client.Get(ctx, mutationKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if strings.EqualFold(raw, pendingMarker) {
		return nil, false, nil
	}

	var entry domain.StoredMutation
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &entry, true, nil
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, mutationKeyPrefix+key, pendingMarker, r.claimTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Store(ctx context.Context, key string, entry domain.StoredMutation) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.client.Set(ctx, mutationKeyPrefix+key, data, r.resultTTL).Err()
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return releaseClaimScript.Run(ctx, r.client, []string{mutationKeyPrefix + key}, pendingMarker).Err()
}
