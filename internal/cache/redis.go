package cache

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"device-tracker/internal/config"
	"device-tracker/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Key namespaces for cached read responses
const (
	mappingFetchFmt   = "mapping:fetch:%s:%s"
	lifecycleFetchFmt = "lifecycle:fetch:%s:%s"
	packlistFetchFmt  = "packlist:fetch:%s:%s"
	MappingAvailable  = "mapping:available"
	cartonOpenFmt     = "carton:open:%s"
	batchesAll        = "batch:all"
)

var client *redis.Client

// Init connects to Redis. On failure the client stays nil and every cache
// call degrades to a miss.
func Init(cfg *config.Config) error {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		client = nil
		return err
	}
	client = c
	return nil
}

// SetClient swaps the client, mainly for tests. nil disables caching.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// MappingFetchKey caches a mapping lookup by alias.
func MappingFetchKey(t, id string) string {
	return fmt.Sprintf(mappingFetchFmt, strings.ToLower(t), id)
}

// LifecycleFetchKey caches a dispatch status lookup by alias.
func LifecycleFetchKey(t, id string) string {
	return fmt.Sprintf(lifecycleFetchFmt, strings.ToLower(t), id)
}

// PacklistFetchKey caches a packlist query by filter.
func PacklistFetchKey(filter, value string) string {
	return fmt.Sprintf(packlistFetchFmt, filter, value)
}

// CartonOpenKey caches the next open carton of a batch ("" means any).
func CartonOpenKey(batchID string) string {
	if batchID == "" {
		batchID = "*any*"
	}
	return fmt.Sprintf(cartonOpenFmt, batchID)
}

// BatchesAllKey caches the batch listing.
func BatchesAllKey() string { return batchesAll }

// ============================================
// Generic Cache Functions
// ============================================

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil || ttl <= 0 {
		return
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("[Cache] set %s failed: %v", key, err)
	}
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	var keys []string
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] scan %s failed: %v", pattern, err)
		return
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// ============================================
// Entity-Based Cache Invalidators
// ============================================

// InvalidateWhitelistCaches clears caches that depend on registered aliases
// Called when: whitelist create, whitelist delete
func InvalidateWhitelistCaches(ctx context.Context) {
	InvalidateKeys(ctx, MappingAvailable)
	InvalidatePattern(ctx, "mapping:fetch:*")
	InvalidatePattern(ctx, "lifecycle:fetch:*")
}

// InvalidateMappingCaches clears mapping lookups and everything resolved through them
// Called when: mapping create, update, delete
func InvalidateMappingCaches(ctx context.Context) {
	InvalidateKeys(ctx, MappingAvailable)
	InvalidatePattern(ctx, "mapping:fetch:*")
	InvalidatePattern(ctx, "lifecycle:fetch:*")
	InvalidatePattern(ctx, "packlist:fetch:*")
}

// InvalidateLifecycleCaches clears dispatch status lookups
// Called when: lifecycle create, update
func InvalidateLifecycleCaches(ctx context.Context) {
	InvalidatePattern(ctx, "lifecycle:fetch:*")
}

// InvalidatePacklistCaches clears packlist queries and open carton lookups
// Called when: packlist create, update, deleteByCarton
func InvalidatePacklistCaches(ctx context.Context) {
	InvalidatePattern(ctx, "packlist:fetch:*")
	InvalidatePattern(ctx, "carton:open:*")
}

// InvalidateCartonCaches clears batch and carton listings
// Called when: batch create, update, delete and carton create
func InvalidateCartonCaches(ctx context.Context) {
	InvalidateKeys(ctx, batchesAll)
	InvalidatePattern(ctx, "carton:open:*")
	InvalidatePattern(ctx, "packlist:fetch:*")
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// PreWarmKey fills a key in the background after an invalidation.
// fetcher errors are dropped; the next request reads from the database.
func PreWarmKey(key string, fetcher func(ctx context.Context) ([]byte, error), ttl time.Duration) {
	if client == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data, err := fetcher(ctx)
		if err != nil {
			return
		}
		SetCached(ctx, key, data, ttl)
	}()
}
