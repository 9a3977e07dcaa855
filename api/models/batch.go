package models

import (
	"time"
)

type BatchStatus string

const (
	BatchPending            BatchStatus = "pending"
	BatchProcessing         BatchStatus = "processing"
	BatchCompleted          BatchStatus = "completed"
	BatchCompletedWithFails BatchStatus = "completed_with_errors"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemDone       ItemStatus = "done"
	ItemError      ItemStatus = "error"
)

type Batch struct {
	ID        string
	TraceID   string
	Status    BatchStatus
	ItemCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Item struct {
	ID                  string
	BatchID             string
	Position            int
	OriginalFilename    string
	OriginalSize        int64
	Format              string
	Quality             int
	Width               int
	Height              int
	MaintainAspectRatio bool
	ResizeMode          string
	Status              ItemStatus
	ErrorReason         string
	ErrorMessage        string
	ResultPath          string
	ResultPreviewHandle string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}
