package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"imageConverter/api/dto"
	"imageConverter/api/kafka"
	"imageConverter/api/models"
	"imageConverter/api/repository"
	"imageConverter/worker/archive"
	"imageConverter/worker/codec"
	"imageConverter/worker/storage"
)

// UploadedFile is one validated multipart file ready for batch creation.
type UploadedFile struct {
	Filename string
	Size     int64
	Data     io.Reader
}

// StatusCache is the slice of the redis-backed status cache the service
// reads and writes.
type StatusCache interface {
	GetItem(ctx context.Context, itemID string) (models.ItemStatus, error)
	SetItem(ctx context.Context, itemID string, status models.ItemStatus) error
	SetBatch(ctx context.Context, batchID string, status models.BatchStatus) error
	DeleteBatch(ctx context.Context, batchID string, itemIDs []string) error
}

type BatchService struct {
	repo     repository.Repository
	cache    StatusCache
	producer kafka.Producer
	store    storage.FileStorage
	exporter *archive.Exporter
	topic    string
}

func NewBatchService(
	repo repository.Repository,
	cache StatusCache,
	producer kafka.Producer,
	store storage.FileStorage,
	exporter *archive.Exporter,
	topic string,
) *BatchService {
	return &BatchService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		store:    store,
		exporter: exporter,
		topic:    topic,
	}
}

// CreateBatch persists the batch and its items, stores the original bytes
// and hands the batch to the worker. Options are validated up front: a bad
// set rejects the whole submission before anything is written.
func (s *BatchService) CreateBatch(
	ctx context.Context,
	traceID string,
	files []UploadedFile,
	global codec.Options,
	overrides map[string]codec.Options,
) (*dto.BatchResponse, error) {
	if err := global.Validate(); err != nil {
		return nil, fmt.Errorf("global options: %w", err)
	}
	for name, opts := range overrides {
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("options for %s: %w", name, err)
		}
	}

	batch := &models.Batch{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		Status:    models.BatchPending,
		ItemCount: len(files),
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(files))
	for i, file := range files {
		opts := global
		if override, ok := overrides[file.Filename]; ok {
			opts = override
		}

		item := models.Item{
			ID:                  uuid.New().String(),
			BatchID:             batch.ID,
			Position:            i,
			OriginalFilename:    file.Filename,
			OriginalSize:        file.Size,
			Format:              string(opts.Format),
			Quality:             opts.Quality,
			Width:               opts.Width,
			Height:              opts.Height,
			MaintainAspectRatio: opts.MaintainAspectRatio,
			ResizeMode:          string(opts.ResizeMode),
			Status:              models.ItemPending,
		}
		if err := s.repo.CreateItem(ctx, &item); err != nil {
			return nil, err
		}

		if err := s.store.Save(storage.OriginalPath(batch.ID, item.ID), file.Data); err != nil {
			return nil, fmt.Errorf("store original %s: %w", file.Filename, err)
		}

		s.cache.SetItem(ctx, item.ID, models.ItemPending)
		items = append(items, item)
	}

	s.cache.SetBatch(ctx, batch.ID, models.BatchPending)

	msg := &kafka.BatchMessage{
		BatchID: batch.ID,
		TraceID: traceID,
		Action:  kafka.ActionProcess,
	}
	if err := s.producer.SendBatchMessage(ctx, s.topic, msg); err != nil {
		return nil, err
	}

	return s.toBatchResponse(batch, items), nil
}

func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*dto.BatchResponse, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			return nil, dto.ErrBatchNotFound
		}
		return nil, err
	}

	items, err := s.repo.GetBatchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return s.toBatchResponse(batch, items), nil
}

// GetItemStatus prefers the cache and falls back to Postgres, refreshing
// the cache on the way out. Both paths serve the same polling shape.
func (s *BatchService) GetItemStatus(ctx context.Context, itemID string) (*dto.ItemStatusResponse, error) {
	if status, err := s.cache.GetItem(ctx, itemID); err == nil {
		return &dto.ItemStatusResponse{ID: itemID, Status: string(status)}, nil
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, dto.ErrItemNotFound
		}
		return nil, err
	}

	s.cache.SetItem(ctx, item.ID, item.Status)

	return &dto.ItemStatusResponse{ID: item.ID, Status: string(item.Status)}, nil
}

// GetItemResult loads the converted bytes of a done item together with the
// download filename.
func (s *BatchService) GetItemResult(ctx context.Context, itemID string) ([]byte, string, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, "", dto.ErrItemNotFound
		}
		return nil, "", err
	}
	if item.Status != models.ItemDone || item.ResultPath == "" {
		return nil, "", dto.ErrItemNotFound
	}

	data, err := s.store.Read(item.ResultPath)
	if err != nil {
		return nil, "", err
	}

	return data, outputFilename(item.OriginalFilename, codec.Format(item.Format)), nil
}

// GetPreview serves the bytes behind a preview handle.
func (s *BatchService) GetPreview(ctx context.Context, handle string) ([]byte, error) {
	if !validHandle(handle) {
		return nil, dto.ErrItemNotFound
	}
	return s.store.Read("previews/" + handle)
}

// ExportArchive packages the done subset of a batch, optionally filtered to
// the given item ids. Items whose bytes cannot be read are excluded and
// reported; only a packaging failure rejects the export.
func (s *BatchService) ExportArchive(ctx context.Context, batchID string, ids []string) (*archive.Result, error) {
	items, err := s.repo.GetBatchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, dto.ErrBatchNotFound
	}

	inputs := make([]archive.Input, 0, len(items))
	paths := make(map[string]string, len(items))
	for _, item := range items {
		if item.Status != models.ItemDone || item.ResultPath == "" {
			continue
		}
		inputs = append(inputs, archive.Input{
			ID:     item.ID,
			Name:   item.OriginalFilename,
			Format: codec.Format(item.Format),
		})
		paths[item.ID] = item.ResultPath
	}

	fetch := func(ctx context.Context, in archive.Input) ([]byte, error) {
		return s.store.Read(paths[in.ID])
	}

	return s.exporter.Export(ctx, inputs, ids, fetch)
}

// Retry asks the worker to resubmit the batch's failed items.
func (s *BatchService) Retry(ctx context.Context, traceID, batchID string) error {
	if _, err := s.repo.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			return dto.ErrBatchNotFound
		}
		return err
	}

	return s.producer.SendBatchMessage(ctx, s.topic, &kafka.BatchMessage{
		BatchID: batchID,
		TraceID: traceID,
		Action:  kafka.ActionRetry,
	})
}

func (s *BatchService) CancelItem(ctx context.Context, traceID, batchID, itemID string) error {
	return s.producer.SendBatchMessage(ctx, s.topic, &kafka.BatchMessage{
		BatchID: batchID,
		TraceID: traceID,
		Action:  kafka.ActionCancelItem,
		ItemID:  itemID,
	})
}

func (s *BatchService) CancelBatch(ctx context.Context, traceID, batchID string) error {
	return s.producer.SendBatchMessage(ctx, s.topic, &kafka.BatchMessage{
		BatchID: batchID,
		TraceID: traceID,
		Action:  kafka.ActionCancelBatch,
	})
}

// DeleteBatch removes the batch rows and files and tells the worker to
// release the preview handles the removed items referenced.
func (s *BatchService) DeleteBatch(ctx context.Context, traceID, batchID string) error {
	items, err := s.repo.GetBatchItems(ctx, batchID)
	if err != nil {
		return err
	}

	var handles []string
	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
		if item.ResultPreviewHandle != "" {
			handles = append(handles, item.ResultPreviewHandle)
		}
	}

	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			return dto.ErrBatchNotFound
		}
		return err
	}

	for _, dir := range storage.BatchDirs(batchID) {
		s.store.Delete(dir)
	}
	s.cache.DeleteBatch(ctx, batchID, itemIDs)

	return s.producer.SendBatchMessage(ctx, s.topic, &kafka.BatchMessage{
		BatchID: batchID,
		TraceID: traceID,
		Action:  kafka.ActionClear,
		Handles: handles,
	})
}

// DeleteItem removes a single item, its files, and its preview handle.
func (s *BatchService) DeleteItem(ctx context.Context, traceID, itemID string) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return dto.ErrItemNotFound
		}
		return err
	}

	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	s.store.Delete(storage.OriginalPath(item.BatchID, item.ID))
	if item.ResultPath != "" {
		s.store.Delete(item.ResultPath)
	}

	var handles []string
	if item.ResultPreviewHandle != "" {
		handles = append(handles, item.ResultPreviewHandle)
	}

	return s.producer.SendBatchMessage(ctx, s.topic, &kafka.BatchMessage{
		BatchID: item.BatchID,
		TraceID: traceID,
		Action:  kafka.ActionClear,
		ItemID:  item.ID,
		Handles: handles,
	})
}

func (s *BatchService) toBatchResponse(batch *models.Batch, items []models.Item) *dto.BatchResponse {
	resp := &dto.BatchResponse{
		ID:        batch.ID,
		TraceID:   batch.TraceID,
		Status:    string(batch.Status),
		ItemCount: batch.ItemCount,
		CreatedAt: batch.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, s.toItemResponse(item))
	}
	return resp
}

func (s *BatchService) toItemResponse(item models.Item) dto.ItemResponse {
	var completedAt *string
	if item.CompletedAt != nil {
		formatted := item.CompletedAt.Format(time.RFC3339)
		completedAt = &formatted
	}

	return dto.ItemResponse{
		ID:               item.ID,
		OriginalFilename: item.OriginalFilename,
		OriginalSize:     item.OriginalSize,
		Format:           item.Format,
		Status:           string(item.Status),
		ErrorReason:      item.ErrorReason,
		ErrorMessage:     item.ErrorMessage,
		PreviewHandle:    item.ResultPreviewHandle,
		CompletedAt:      completedAt,
	}
}

func outputFilename(original string, format codec.Format) string {
	base := original
	if idx := strings.LastIndex(original, "."); idx > 0 {
		base = original[:idx]
	}
	return base + format.Ext()
}

// validHandle rejects anything that could escape the previews directory.
func validHandle(handle string) bool {
	if handle == "" || strings.Contains(handle, "..") {
		return false
	}
	return !strings.ContainsAny(handle, "/\\")
}
