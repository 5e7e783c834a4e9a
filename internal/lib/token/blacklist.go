package token

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist remembers revoked token ids until they expire. Revoke is atomic
// and reports false when jti was already revoked.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const blacklistPrefix = "token_blacklist_"

type RedisBlacklist struct {
	client redis.UniversalClient
}

func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, blacklistPrefix+jti, 1, ttl).Result()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryBlacklist is a process-local Blacklist.
type MemoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{revoked: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if until, ok := b.revoked[jti]; ok && !now.After(until) {
		return false, nil
	}
	b.revoked[jti] = now.Add(ttl)
	return true, nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(b.revoked, jti)
		return false, nil
	}
	return true, nil
}
