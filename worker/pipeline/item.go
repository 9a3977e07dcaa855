package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"imageConverter/worker/codec"
)

// Status is the lifecycle state of a work item.
//
// pending -> processing -> done | error. The only backward transitions are
// error -> pending (retry) and processing -> pending (cancellation).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// ErrorInfo describes why an item ended in the error state.
type ErrorInfo struct {
	Reason  codec.Reason `json:"reason"`
	Message string       `json:"message"`
}

// Source yields the raw input bytes of an item. The buffer is owned by the
// scheduler worker only for the duration of the invoker call; file-backed
// sources let a retried item be re-read without keeping bytes resident.
type Source interface {
	Open(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Open(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// BytesSource serves an in-memory buffer.
type BytesSource []byte

func (b BytesSource) Open(context.Context) ([]byte, error) {
	return b, nil
}

// WorkItem is one image's trip through the pipeline. ID is assigned at
// creation and never reused; OriginalName and OriginalSize are immutable.
//
// PreviewHandle and ResultPreviewHandle are weak references into the
// resource tracker's registry; the tracker owns the handle lifecycle. They
// are set outside the scheduling window and not guarded by the item mutex.
type WorkItem struct {
	ID           string
	OriginalName string
	OriginalSize int64
	Options      codec.Options

	PreviewHandle       string
	ResultPreviewHandle string

	source Source

	mu      sync.Mutex
	status  Status
	result  []byte
	errInfo *ErrorInfo
}

func NewWorkItem(name string, size int64, src Source, opts codec.Options) *WorkItem {
	return NewWorkItemWithID(uuid.New().String(), name, size, src, opts)
}

// NewWorkItemWithID rebuilds an item around an id assigned elsewhere, such
// as a persisted batch record.
func NewWorkItemWithID(id, name string, size int64, src Source, opts codec.Options) *WorkItem {
	return &WorkItem{
		ID:           id,
		OriginalName: name,
		OriginalSize: size,
		Options:      opts,
		source:       src,
		status:       StatusPending,
	}
}

func (w *WorkItem) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Result returns the encoded bytes; non-nil only when the item is done.
func (w *WorkItem) Result() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// ErrInfo returns the failure details; non-nil only when the item is in error.
func (w *WorkItem) ErrInfo() *ErrorInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errInfo
}

func (w *WorkItem) openSource(ctx context.Context) ([]byte, error) {
	if w.source == nil {
		return nil, nil
	}
	return w.source.Open(ctx)
}

// markProcessing claims the item for a scheduler worker. It reports false
// when the item is not pending, so stale submissions are skipped.
func (w *WorkItem) markProcessing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusPending {
		return false
	}
	w.status = StatusProcessing
	return true
}

func (w *WorkItem) complete(result []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusProcessing {
		return
	}
	w.status = StatusDone
	w.result = result
	w.errInfo = nil
}

func (w *WorkItem) fail(info *ErrorInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusProcessing {
		return
	}
	w.status = StatusError
	w.result = nil
	w.errInfo = info
}

// revert undoes a cancelled dispatch: processing -> pending, nothing attached.
func (w *WorkItem) revert() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusProcessing {
		return
	}
	w.status = StatusPending
	w.result = nil
	w.errInfo = nil
}

// resetForRetry moves a failed item back to pending and clears its failure.
// Options are left untouched so the retry reuses the original parameters.
func (w *WorkItem) resetForRetry() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusError {
		return false
	}
	w.status = StatusPending
	w.errInfo = nil
	return true
}
