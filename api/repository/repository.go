package repository

import (
	"context"
	"errors"

	"imageConverter/api/models"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrItemNotFound  = errors.New("item not found")
)

type Repository interface {
	CreateBatch(ctx context.Context, batch *models.Batch) error
	CreateItem(ctx context.Context, item *models.Item) error
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	GetBatchItems(ctx context.Context, batchID string) ([]models.Item, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	DeleteBatch(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
}
