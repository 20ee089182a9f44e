package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaims records nullifier claims in Redis.
// A zero TTL keeps claims forever; otherwise a claim lapses with the stamp.
type RedisClaims struct {
	client   *redis.Client
	claimTTL time.Duration
}

// NewRedisClaims constructs a Redis-backed claim store.
func NewRedisClaims(client *redis.Client, claimTTL time.Duration) *RedisClaims {
	return &RedisClaims{
		client:   client,
		claimTTL: claimTTL,
	}
}

// Claim sets the owner with SETNX and returns whoever owns the hash afterwards.
//
// Side effects: one SETNX and, when the key already existed, one GET.
func (c *RedisClaims) Claim(ctx context.Context, hash, address string) (string, error) {
	if hash == "" || address == "" {
		return "", fmt.Errorf("hash and address are required")
	}
	key := claimKey(hash)
	ok, err := c.client.SetNX(ctx, key, address, c.claimTTL).Result()
	if err != nil {
		return "", fmt.Errorf("claim stamp hash: %w", err)
	}
	if ok {
		return address, nil
	}
	owner, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("read claim owner: %w", err)
	}
	return owner, nil
}

func claimKey(hash string) string {
	return redisClaimKeyPrefix + hash
}
