package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"imageConverter/api/dto"
	"imageConverter/api/kafka"
	"imageConverter/api/models"
	"imageConverter/api/repository"
	"imageConverter/worker/archive"
	"imageConverter/worker/storage"
)

type stubRepo struct {
	items map[string]*models.Item
}

func (r *stubRepo) CreateBatch(ctx context.Context, batch *models.Batch) error { return nil }
func (r *stubRepo) CreateItem(ctx context.Context, item *models.Item) error   { return nil }
func (r *stubRepo) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	return nil, repository.ErrBatchNotFound
}
func (r *stubRepo) GetBatchItems(ctx context.Context, batchID string) ([]models.Item, error) {
	return nil, nil
}
func (r *stubRepo) GetItem(ctx context.Context, id string) (*models.Item, error) {
	if item, ok := r.items[id]; ok {
		return item, nil
	}
	return nil, repository.ErrItemNotFound
}
func (r *stubRepo) DeleteBatch(ctx context.Context, id string) error { return nil }
func (r *stubRepo) DeleteItem(ctx context.Context, id string) error  { return nil }

type stubCache struct {
	items map[string]models.ItemStatus
}

func (c *stubCache) GetItem(ctx context.Context, itemID string) (models.ItemStatus, error) {
	if status, ok := c.items[itemID]; ok {
		return status, nil
	}
	return "", errors.New("cache miss")
}

func (c *stubCache) SetItem(ctx context.Context, itemID string, status models.ItemStatus) error {
	c.items[itemID] = status
	return nil
}

func (c *stubCache) SetBatch(ctx context.Context, batchID string, status models.BatchStatus) error {
	return nil
}

func (c *stubCache) DeleteBatch(ctx context.Context, batchID string, itemIDs []string) error {
	return nil
}

type stubProducer struct{}

func (p *stubProducer) SendBatchMessage(ctx context.Context, topic string, message *kafka.BatchMessage) error {
	return nil
}
func (p *stubProducer) Close() error { return nil }

func newStatusService(t *testing.T, repo *stubRepo, cache *stubCache) *BatchService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewFileStorage(t.TempDir())
	return NewBatchService(repo, cache, &stubProducer{}, store, archive.NewExporter(logger), "batches")
}

func TestGetItemStatus_CacheHitAndMissServeSameShape(t *testing.T) {
	repo := &stubRepo{items: map[string]*models.Item{
		"i1": {
			ID:               "i1",
			BatchID:          "b1",
			OriginalFilename: "photo.jpg",
			OriginalSize:     1234,
			Format:           "webp",
			Status:           models.ItemDone,
		},
	}}
	cache := &stubCache{items: map[string]models.ItemStatus{}}
	svc := newStatusService(t, repo, cache)

	ctx := context.Background()

	miss, err := svc.GetItemStatus(ctx, "i1")
	if err != nil {
		t.Fatalf("Cache-miss lookup failed: %v", err)
	}
	if miss.ID != "i1" || miss.Status != string(models.ItemDone) {
		t.Errorf("Unexpected miss response: %+v", miss)
	}
	if cache.items["i1"] != models.ItemDone {
		t.Error("Cache not refreshed after miss")
	}

	hit, err := svc.GetItemStatus(ctx, "i1")
	if err != nil {
		t.Fatalf("Cache-hit lookup failed: %v", err)
	}

	missJSON, _ := json.Marshal(miss)
	hitJSON, _ := json.Marshal(hit)
	if string(missJSON) != string(hitJSON) {
		t.Errorf("Responses differ by cache state: %s vs %s", missJSON, hitJSON)
	}
}

func TestGetItemStatus_UnknownItem(t *testing.T) {
	repo := &stubRepo{items: map[string]*models.Item{}}
	cache := &stubCache{items: map[string]models.ItemStatus{}}
	svc := newStatusService(t, repo, cache)

	_, err := svc.GetItemStatus(context.Background(), "ghost")
	if !errors.Is(err, dto.ErrItemNotFound) {
		t.Fatalf("Expected item-not-found, got %v", err)
	}
}
