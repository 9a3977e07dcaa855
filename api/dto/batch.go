package dto

import "errors"

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrItemNotFound  = errors.New("item not found")
)

// ConversionOptionsRequest mirrors the encode parameters accepted per batch
// or per file. Zero width/height means "keep source dimension".
type ConversionOptionsRequest struct {
	Format              string `json:"format"`
	Quality             int    `json:"quality"`
	Width               int    `json:"width,omitempty"`
	Height              int    `json:"height,omitempty"`
	MaintainAspectRatio *bool  `json:"maintain_aspect_ratio,omitempty"`
	ResizeMode          string `json:"resize_mode,omitempty"`
}

type BatchResponse struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	Status    string         `json:"status"`
	ItemCount int            `json:"item_count"`
	Items     []ItemResponse `json:"items,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type ItemResponse struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"original_filename"`
	OriginalSize     int64   `json:"original_size"`
	Format           string  `json:"format"`
	Status           string  `json:"status"`
	ErrorReason      string  `json:"error_reason,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	PreviewHandle    string  `json:"preview_handle,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// ItemStatusResponse is the polling shape served by the item status
// endpoint. It is identical whether the status came from the cache or from
// Postgres; full item detail lives on the batch response.
type ItemStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RetryResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
