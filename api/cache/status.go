package cache

import (
	"context"
	"fmt"
	"time"

	"imageConverter/api/database"
	"imageConverter/api/models"
)

const (
	itemKeyPrefix  = "item:status:"
	batchKeyPrefix = "batch:status:"
	statusTTL      = 10 * time.Minute
)

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) GetItem(ctx context.Context, itemID string) (models.ItemStatus, error) {
	data, err := sc.cache.Get(ctx, fmt.Sprintf("%s%s", itemKeyPrefix, itemID))
	if err != nil {
		return "", err
	}
	return models.ItemStatus(data), nil
}

func (sc *StatusCache) SetItem(ctx context.Context, itemID string, status models.ItemStatus) error {
	return sc.cache.Set(ctx, fmt.Sprintf("%s%s", itemKeyPrefix, itemID), string(status), statusTTL)
}

func (sc *StatusCache) GetBatch(ctx context.Context, batchID string) (models.BatchStatus, error) {
	data, err := sc.cache.Get(ctx, fmt.Sprintf("%s%s", batchKeyPrefix, batchID))
	if err != nil {
		return "", err
	}
	return models.BatchStatus(data), nil
}

func (sc *StatusCache) SetBatch(ctx context.Context, batchID string, status models.BatchStatus) error {
	return sc.cache.Set(ctx, fmt.Sprintf("%s%s", batchKeyPrefix, batchID), string(status), statusTTL)
}

func (sc *StatusCache) DeleteBatch(ctx context.Context, batchID string, itemIDs []string) error {
	keys := make([]string, 0, len(itemIDs)+1)
	keys = append(keys, fmt.Sprintf("%s%s", batchKeyPrefix, batchID))
	for _, id := range itemIDs {
		keys = append(keys, fmt.Sprintf("%s%s", itemKeyPrefix, id))
	}
	return sc.cache.Del(ctx, keys...)
}
