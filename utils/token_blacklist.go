package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked token IDs until the tokens would have expired anyway.
// Redis is used when available so revocations survive restarts; otherwise an in-process map.
type TokenBlacklist struct {
	rc  *redis.Client
	log *zap.Logger

	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewTokenBlacklist creates a blacklist. rc may be nil.
func NewTokenBlacklist(rc *redis.Client, log *zap.Logger) *TokenBlacklist {
	return &TokenBlacklist{
		rc:      rc,
		log:     log,
		entries: map[string]time.Time{},
		now:     time.Now,
	}
}

// Add revokes the token ID until expiresAt. Already expired tokens are ignored.
func (b *TokenBlacklist) Add(ctx context.Context, tokenID string, expiresAt time.Time) {
	ttl := expiresAt.Sub(b.now())
	if tokenID == "" || ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := b.rc.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
		if err == nil {
			return
		}
		b.log.Warn("redis blacklist set failed, keeping revocation in memory", zap.Error(err))
	}
	b.mu.Lock()
	b.entries[tokenID] = expiresAt
	b.pruneLocked()
	b.mu.Unlock()
}

// Contains reports whether the token ID was revoked and has not yet expired.
func (b *TokenBlacklist) Contains(ctx context.Context, tokenID string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+tokenID).Result()
		if err == nil && n > 0 {
			return true
		}
		if err != nil {
			b.log.Warn("redis blacklist lookup failed", zap.Error(err))
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.entries[tokenID]
	if !ok {
		return false
	}
	if b.now().After(exp) {
		delete(b.entries, tokenID)
		return false
	}
	return true
}

func (b *TokenBlacklist) pruneLocked() {
	now := b.now()
	for id, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, id)
		}
	}
}
