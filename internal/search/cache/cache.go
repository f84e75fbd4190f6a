// Package cache implements the search.QueryCache interface on Redis. Entries
// are keyed per tenant so a tenant's writes can invalidate only that tenant's
// cached responses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/redis"
)

const keyPrefix = "search"

// Cache stores serialized search responses in Redis with a fixed TTL.
// Concurrent misses for the same key are collapsed with singleflight so a
// popular query hits Redis once, not once per in-flight request.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a query cache over an established Redis client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached response for (tenant, query, topK), if present.
// Redis errors are treated as misses.
func (c *Cache) Get(ctx context.Context, tenantID, query string, topK int) (*search.SearchResponse, bool) {
	key := c.key(tenantID, query, topK)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.client.Get(ctx, key)
	})
	if err != nil {
		if !redis.IsNilError(err) {
			c.logger.Warn("cache lookup failed", "tenant", tenantID, "error", err)
		}
		return nil, false
	}

	var resp search.SearchResponse
	if err := json.Unmarshal([]byte(v.(string)), &resp); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

// Set stores a response. Failures are logged and swallowed; the cache is an
// optimization, never a dependency.
func (c *Cache) Set(ctx context.Context, tenantID, query string, topK int, resp *search.SearchResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("cannot encode response for caching", "tenant", tenantID, "error", err)
		return
	}
	key := c.key(tenantID, query, topK)
	if err := c.client.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "tenant", tenantID, "error", err)
	}
}

// InvalidateTenant removes every cached response belonging to one tenant.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, tenantID)
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache invalidation failed", "tenant", tenantID, "error", err)
		return
	}
	if deleted > 0 {
		c.logger.Debug("invalidated cached queries", "tenant", tenantID, "entries", deleted)
	}
}

// key builds "search:<tenant>:<digest>". The digest covers the normalized
// query and topK so whitespace variants share an entry.
func (c *Cache) key(tenantID, query string, topK int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), topK)))
	return fmt.Sprintf("%s:%s:%s", keyPrefix, tenantID, hex.EncodeToString(sum[:16]))
}
