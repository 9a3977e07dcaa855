package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = 10 * time.Minute

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) SetItem(ctx context.Context, itemID string, status string) error {
	return c.client.Set(ctx, "item:status:"+itemID, status, statusTTL).Err()
}

func (c *StatusCache) SetBatch(ctx context.Context, batchID string, status string) error {
	return c.client.Set(ctx, "batch:status:"+batchID, status, statusTTL).Err()
}
