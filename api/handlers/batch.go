package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"imageConverter/api/dto"
	"imageConverter/api/middleware"
	"imageConverter/api/service"
	"imageConverter/api/validation"
	"imageConverter/worker/archive"
	"imageConverter/worker/codec"
)

// Service is the batch orchestration surface the handler depends on.
type Service interface {
	CreateBatch(ctx context.Context, traceID string, files []service.UploadedFile, global codec.Options, overrides map[string]codec.Options) (*dto.BatchResponse, error)
	GetBatch(ctx context.Context, batchID string) (*dto.BatchResponse, error)
	GetItemStatus(ctx context.Context, itemID string) (*dto.ItemStatusResponse, error)
	GetItemResult(ctx context.Context, itemID string) ([]byte, string, error)
	GetPreview(ctx context.Context, handle string) ([]byte, error)
	ExportArchive(ctx context.Context, batchID string, ids []string) (*archive.Result, error)
	Retry(ctx context.Context, traceID, batchID string) error
	CancelItem(ctx context.Context, traceID, batchID, itemID string) error
	CancelBatch(ctx context.Context, traceID, batchID string) error
	DeleteBatch(ctx context.Context, traceID, batchID string) error
	DeleteItem(ctx context.Context, traceID, itemID string) error
}

type BatchHandler struct {
	service      Service
	logger       *zap.Logger
	maxFileSize  int64
	maxBatchSize int
}

func NewBatchHandler(service Service, logger *zap.Logger, maxFileSize int64, maxBatchSize int) *BatchHandler {
	return &BatchHandler{
		service:      service,
		logger:       logger,
		maxFileSize:  maxFileSize,
		maxBatchSize: maxBatchSize,
	}
}

// Create accepts a multipart upload with one or more "files" parts, an
// optional "options" JSON part applied to every file, and an optional
// "overrides" JSON part mapping filenames to per-file options.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if r.Method != http.MethodPost {
		h.handleError(w, "Method not allowed", nil, traceID, http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.handleError(w, "No files uploaded", validation.ErrEmptyBatch, traceID, http.StatusBadRequest)
		return
	}
	if len(headers) > h.maxBatchSize {
		h.handleError(w, "Too many files", validation.ErrTooManyFiles, traceID, http.StatusBadRequest)
		return
	}

	global, err := h.parseOptions(r.FormValue("options"))
	if err != nil {
		h.handleError(w, "Invalid options", err, traceID, http.StatusBadRequest)
		return
	}

	overrides, err := h.parseOverrides(r.FormValue("overrides"))
	if err != nil {
		h.handleError(w, "Invalid overrides", err, traceID, http.StatusBadRequest)
		return
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			h.handleError(w, "Failed to read file", err, traceID, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if err := h.validateFile(header, file); err != nil {
			h.handleError(w, fmt.Sprintf("Invalid file %s", header.Filename), err, traceID, http.StatusBadRequest)
			return
		}

		files = append(files, service.UploadedFile{
			Filename: sanitizeFilename(header.Filename),
			Size:     header.Size,
			Data:     file,
		})
	}

	resp, err := h.service.CreateBatch(r.Context(), traceID, files, global, overrides)
	if err != nil {
		h.handleError(w, "Failed to create batch", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Batch created",
		zap.String("trace_id", traceID),
		zap.String("batch_id", resp.ID),
		zap.Int("item_count", resp.ItemCount),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

// Batches dispatches everything under /batches/{id}: status, archive export,
// retry, cancel, per-item cancel, and deletion.
func (h *BatchHandler) Batches(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/batches/"), "/")
	batchID := parts[0]
	if batchID == "" {
		h.handleError(w, "Batch ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.status(w, r, traceID, batchID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deleteBatch(w, r, traceID, batchID)
	case len(parts) == 2 && parts[1] == "archive" && r.Method == http.MethodGet:
		h.archive(w, r, traceID, batchID)
	case len(parts) == 2 && parts[1] == "retry" && r.Method == http.MethodPost:
		h.retry(w, r, traceID, batchID)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		h.cancelBatch(w, r, traceID, batchID)
	case len(parts) == 4 && parts[1] == "items" && parts[3] == "cancel" && r.Method == http.MethodPost:
		h.cancelItem(w, r, traceID, batchID, parts[2])
	default:
		h.handleError(w, "Not found", nil, traceID, http.StatusNotFound)
	}
}

// Items dispatches /items/{id}: status lookup, result download, deletion.
func (h *BatchHandler) Items(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/items/"), "/")
	itemID := parts[0]
	if itemID == "" {
		h.handleError(w, "Item ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.itemStatus(w, r, traceID, itemID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deleteItem(w, r, traceID, itemID)
	case len(parts) == 2 && parts[1] == "result" && r.Method == http.MethodGet:
		h.itemResult(w, r, traceID, itemID)
	default:
		h.handleError(w, "Not found", nil, traceID, http.StatusNotFound)
	}
}

// Preview serves the bytes behind a preview handle.
func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	handle := strings.TrimPrefix(r.URL.Path, "/previews/")
	if handle == "" {
		h.handleError(w, "Preview handle is required", nil, traceID, http.StatusBadRequest)
		return
	}

	data, err := h.service.GetPreview(r.Context(), handle)
	if err != nil {
		h.handleError(w, "Preview not found", err, traceID, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *BatchHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BatchHandler) status(w http.ResponseWriter, r *http.Request, traceID, batchID string) {
	resp, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, dto.ErrBatchNotFound) {
			h.handleError(w, "Batch not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get batch", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *BatchHandler) archive(w http.ResponseWriter, r *http.Request, traceID, batchID string) {
	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids = strings.Split(raw, ",")
	}

	result, err := h.service.ExportArchive(r.Context(), batchID, ids)
	if err != nil {
		if errors.Is(err, dto.ErrBatchNotFound) {
			h.handleError(w, "Batch not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to export archive", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Archive exported",
		zap.String("trace_id", traceID),
		zap.String("batch_id", batchID),
		zap.Int("packed", len(result.Packed)),
		zap.Int("failed", len(result.FailedImages)),
	)

	if len(result.FailedImages) > 0 {
		w.Header().Set("X-Failed-Items", strings.Join(result.FailedImages, ","))
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "batch-"+batchID+".zip"))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Archive)
}

func (h *BatchHandler) retry(w http.ResponseWriter, r *http.Request, traceID, batchID string) {
	if err := h.service.Retry(r.Context(), traceID, batchID); err != nil {
		if errors.Is(err, dto.ErrBatchNotFound) {
			h.handleError(w, "Batch not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to retry batch", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusAccepted, dto.RetryResponse{BatchID: batchID, Status: "retry_requested"})
}

func (h *BatchHandler) cancelBatch(w http.ResponseWriter, r *http.Request, traceID, batchID string) {
	if err := h.service.CancelBatch(r.Context(), traceID, batchID); err != nil {
		h.handleError(w, "Failed to cancel batch", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID, "status": "cancel_requested"})
}

func (h *BatchHandler) cancelItem(w http.ResponseWriter, r *http.Request, traceID, batchID, itemID string) {
	if err := h.service.CancelItem(r.Context(), traceID, batchID, itemID); err != nil {
		h.handleError(w, "Failed to cancel item", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{"item_id": itemID, "status": "cancel_requested"})
}

func (h *BatchHandler) deleteBatch(w http.ResponseWriter, r *http.Request, traceID, batchID string) {
	if err := h.service.DeleteBatch(r.Context(), traceID, batchID); err != nil {
		if errors.Is(err, dto.ErrBatchNotFound) {
			h.handleError(w, "Batch not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to delete batch", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Batch deleted",
		zap.String("trace_id", traceID),
		zap.String("batch_id", batchID),
	)

	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) itemStatus(w http.ResponseWriter, r *http.Request, traceID, itemID string) {
	resp, err := h.service.GetItemStatus(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, dto.ErrItemNotFound) {
			h.handleError(w, "Item not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get item status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *BatchHandler) itemResult(w http.ResponseWriter, r *http.Request, traceID, itemID string) {
	data, filename, err := h.service.GetItemResult(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, dto.ErrItemNotFound) {
			h.handleError(w, "Result not available", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get item result", err, traceID, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *BatchHandler) deleteItem(w http.ResponseWriter, r *http.Request, traceID, itemID string) {
	if err := h.service.DeleteItem(r.Context(), traceID, itemID); err != nil {
		if errors.Is(err, dto.ErrItemNotFound) {
			h.handleError(w, "Item not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to delete item", err, traceID, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) parseOptions(raw string) (codec.Options, error) {
	opts := codec.DefaultOptions()
	if raw == "" {
		return opts, nil
	}

	var req dto.ConversionOptionsRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return opts, err
	}

	return toOptions(req)
}

func (h *BatchHandler) parseOverrides(raw string) (map[string]codec.Options, error) {
	if raw == "" {
		return nil, nil
	}

	var reqs map[string]dto.ConversionOptionsRequest
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, err
	}

	overrides := make(map[string]codec.Options, len(reqs))
	for filename, req := range reqs {
		opts, err := toOptions(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		overrides[filename] = opts
	}
	return overrides, nil
}

func toOptions(req dto.ConversionOptionsRequest) (codec.Options, error) {
	opts := codec.DefaultOptions()

	if req.Format != "" {
		format, err := codec.ParseFormat(req.Format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	if req.Quality != 0 {
		opts.Quality = req.Quality
	}
	opts.Width = req.Width
	opts.Height = req.Height
	if req.MaintainAspectRatio != nil {
		opts.MaintainAspectRatio = *req.MaintainAspectRatio
	}
	if req.ResizeMode != "" {
		opts.ResizeMode = codec.ResizeMode(req.ResizeMode)
	}

	return opts, opts.Validate()
}

func (h *BatchHandler) validateFile(header *multipart.FileHeader, file multipart.File) error {
	if header.Size > h.maxFileSize {
		return validation.ErrFileTooLarge
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil {
		return err
	}
	if !validation.IsAllowedImageType(fileType) {
		return validation.ErrInvalidFileType
	}

	return nil
}

func sanitizeFilename(filename string) string {
	return filepath.Base(filename)
}

func (h *BatchHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *BatchHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
