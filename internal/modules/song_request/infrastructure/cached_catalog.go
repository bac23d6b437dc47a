package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// Compile-time check that CachedCatalog implements ports.Catalog.
var _ ports.Catalog = (*CachedCatalog)(nil)

const searchCacheKeyPrefix = "reqbox:catalog:search:"

var errCacheMiss = errors.New("cache miss")

// searchCache is the subset of a key-value store the catalog cache needs.
type searchCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisSearchCache stores search results in Redis.
type RedisSearchCache struct {
	rdb *redis.Client
}

// NewRedisSearchCache connects to the Redis instance at url.
func NewRedisSearchCache(ctx context.Context, url string) (*RedisSearchCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSearchCache{rdb: rdb}, nil
}

func (c *RedisSearchCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	return value, err
}

func (c *RedisSearchCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Close closes the client.
func (c *RedisSearchCache) Close() error {
	return c.rdb.Close()
}

type cachedTrack struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// CachedCatalog caches Search results. Audio URLs expire upstream and are never cached.
// Cache failures are logged and the inner catalog is used instead.
type CachedCatalog struct {
	inner ports.Catalog
	cache searchCache
	ttl   time.Duration
}

// NewCachedCatalog wraps inner with a search cache.
func NewCachedCatalog(inner ports.Catalog, cache searchCache, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func searchCacheKey(query string) string {
	return searchCacheKeyPrefix + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func (c *CachedCatalog) Search(ctx context.Context, query string) (domain.Track, error) {
	key := searchCacheKey(query)

	value, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached cachedTrack
		if err := json.Unmarshal([]byte(value), &cached); err == nil {
			return domain.Track{
				ID:          domain.TrackID(cached.ID),
				DisplayName: cached.Name,
				ArtistName:  cached.Artist,
			}, nil
		}
		slog.Warn("discarding corrupt search cache entry", "key", key)
	case !errors.Is(err, errCacheMiss):
		slog.Warn("failed to read search cache", "key", key, "error", err)
	}

	track, err := c.inner.Search(ctx, query)
	if err != nil {
		return domain.Track{}, err
	}

	data, err := json.Marshal(cachedTrack{
		ID:     string(track.ID),
		Name:   track.DisplayName,
		Artist: track.ArtistName,
	})
	if err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
			slog.Warn("failed to write search cache", "key", key, "error", err)
		}
	}

	return track, nil
}

func (c *CachedCatalog) ResolveAudioURL(ctx context.Context, id domain.TrackID) (string, error) {
	return c.inner.ResolveAudioURL(ctx, id)
}
