// Package cache provides a Redis-backed read-through cache for the
// resolution path. Only the fields needed to serve a redirect are cached;
// counters always come from the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbocharov/shortalias/internal/models"
)

// ErrCacheMiss is returned when the alias is not present in the cache.
var ErrCacheMiss = errors.New("cache miss")

type cachedURL struct {
	Alias       string     `json:"alias"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type URLCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at the given address and returns a URLCache with the
// given entry TTL. The connection is verified with a ping before use.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*URLCache, error) {
	const op = "cache.New"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return &URLCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *URLCache) Close() error {
	return c.client.Close()
}

func key(alias string) string {
	return "url:" + alias
}

// Get returns the cached record for the alias, or ErrCacheMiss.
func (c *URLCache) Get(ctx context.Context, alias string) (*models.URL, error) {
	const op = "cache.URLCache.Get"

	data, err := c.client.Get(ctx, key(alias)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, ErrCacheMiss)
		}

		return nil, fmt.Errorf("%s: failed to get cached url: %w", op, err)
	}

	var rec cachedURL
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal cached url: %w", op, err)
	}

	return &models.URL{
		Alias:       rec.Alias,
		OriginalURL: rec.OriginalURL,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// Set caches the record under its alias for the configured TTL.
func (c *URLCache) Set(ctx context.Context, url *models.URL) error {
	const op = "cache.URLCache.Set"

	data, err := json.Marshal(cachedURL{
		Alias:       url.Alias,
		OriginalURL: url.OriginalURL,
		ExpiresAt:   url.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal url: %w", op, err)
	}

	if err := c.client.Set(ctx, key(url.Alias), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to cache url: %w", op, err)
	}

	return nil
}

// Delete drops the cached entry for the alias, if any.
func (c *URLCache) Delete(ctx context.Context, alias string) error {
	const op = "cache.URLCache.Delete"

	if err := c.client.Del(ctx, key(alias)).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete cached url: %w", op, err)
	}

	return nil
}
