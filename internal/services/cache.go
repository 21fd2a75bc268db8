package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/casefilehq/casefile-backend/internal/database"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL is the default lifetime for cached payloads
	DefaultCacheTTL = 15 * time.Minute
	// MinCacheTTL / MaxCacheTTL clamp custom TTLs. Dossier payloads are
	// mutable and invalidated on write, so the ceiling stays low.
	MinCacheTTL = time.Minute
	MaxCacheTTL = time.Hour
)

// CacheService provides Redis-backed caching for assembled payloads.
type CacheService struct{}

// Get retrieves a value from cache. A miss is not an error.
func (c *CacheService) Get(key string, dest interface{}) (bool, error) {
	if database.RedisClient == nil {
		return false, nil
	}
	ctx := context.Background()
	cacheKey := CacheKeyPrefix + key

	val, err := database.RedisClient.Get(ctx, cacheKey).Result()
	if err != nil {
		return false, nil // Cache miss
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}

	return true, nil
}

// Set stores a value in cache with the default TTL
func (c *CacheService) Set(key string, value interface{}) error {
	return c.SetWithTTL(key, value, DefaultCacheTTL)
}

// SetWithTTL stores a value in cache with a custom TTL (clamped)
func (c *CacheService) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	if database.RedisClient == nil {
		return nil
	}
	if ttl < MinCacheTTL {
		ttl = MinCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}

	ctx := context.Background()
	cacheKey := CacheKeyPrefix + key

	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return database.RedisClient.Set(ctx, cacheKey, jsonData, ttl).Err()
}

// Delete removes a value from cache
func (c *CacheService) Delete(key string) error {
	if database.RedisClient == nil {
		return nil
	}
	ctx := context.Background()
	cacheKey := CacheKeyPrefix + key
	return database.RedisClient.Del(ctx, cacheKey).Err()
}

// Global cache service instance
var Cache = &CacheService{}
