// internal/contracts/statuscache/statuscache.go
package statuscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"home-contracts/internal/common/logger"
	"home-contracts/internal/common/metrics"
	"home-contracts/internal/models"
)

// Cache holds last-seen pack statuses for the read-side status endpoint.
// It is advisory only. Workflow decisions (envelope reuse, the completion
// gate, assembly preconditions) always go to the provider for live status
// and never consult this cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "status-cache"}),
	}
}

func cacheKey(orderID string, pack models.PackType) string {
	return "contract:status:" + orderID + ":" + string(pack)
}

// Get returns the cached status for a pack. The second return reports
// whether a value was present; cache errors are logged and treated as a
// miss.
func (c *Cache) Get(ctx context.Context, orderID string, pack models.PackType) (models.PackStatus, bool) {
	val, err := c.client.Get(ctx, cacheKey(orderID, pack)).Result()
	if err == redis.Nil {
		metrics.StatusCacheHits.WithLabelValues("miss").Inc()
		return "", false
	}
	if err != nil {
		metrics.StatusCacheHits.WithLabelValues("error").Inc()
		c.logger.Warn("status cache read failed", map[string]interface{}{
			"orderId": orderID,
			"pack":    string(pack),
			"error":   err.Error(),
		})
		return "", false
	}
	metrics.StatusCacheHits.WithLabelValues("hit").Inc()
	return models.PackStatus(val), true
}

// Set records a status observation. Failures are logged, not returned;
// the cache never blocks the workflow.
func (c *Cache) Set(ctx context.Context, orderID string, pack models.PackType, status models.PackStatus) {
	if err := c.client.Set(ctx, cacheKey(orderID, pack), string(status), c.ttl).Err(); err != nil {
		c.logger.Warn("status cache write failed", map[string]interface{}{
			"orderId": orderID,
			"pack":    string(pack),
			"error":   err.Error(),
		})
	}
}

// Invalidate drops the cached entry for a pack, typically on a webhook
// status change.
func (c *Cache) Invalidate(ctx context.Context, orderID string, pack models.PackType) {
	if err := c.client.Del(ctx, cacheKey(orderID, pack)).Err(); err != nil {
		c.logger.Warn("status cache invalidate failed", map[string]interface{}{
			"orderId": orderID,
			"pack":    string(pack),
			"error":   err.Error(),
		})
	}
}

// InvalidateOrder drops all three pack entries for an order.
func (c *Cache) InvalidateOrder(ctx context.Context, orderID string) {
	keys := make([]string, 0, len(models.AllPacks()))
	for _, pack := range models.AllPacks() {
		keys = append(keys, cacheKey(orderID, pack))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("status cache invalidate failed", map[string]interface{}{
			"orderId": orderID,
			"error":   err.Error(),
		})
	}
}
