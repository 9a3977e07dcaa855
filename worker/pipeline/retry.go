package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Submitter is the slice of the scheduler the retry coordinator needs.
type Submitter interface {
	Submit(ctx context.Context, items []*WorkItem, limit int, onProgress ProgressFunc) (*BatchResult, error)
}

// RetryCoordinator tracks failed items across scheduling runs so exactly
// that subset can be resubmitted. Items are keyed by their stable id, never
// by filename; insertion order is preserved and duplicates are dropped.
type RetryCoordinator struct {
	logger *zap.Logger

	mu    sync.Mutex
	order []string
	items map[string]*WorkItem
}

func NewRetryCoordinator(logger *zap.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		logger: logger,
		items:  make(map[string]*WorkItem),
	}
}

// AddFailures records failed items. Items not in the error state and ids
// already tracked are ignored.
func (r *RetryCoordinator) AddFailures(items ...*WorkItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		if item.Status() != StatusError {
			continue
		}
		if _, ok := r.items[item.ID]; ok {
			continue
		}
		r.items[item.ID] = item
		r.order = append(r.order, item.ID)
	}
}

// IDs returns the tracked ids in insertion order.
func (r *RetryCoordinator) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *RetryCoordinator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Clear empties the set without touching item state. Used when the caller
// dismisses the failures instead of retrying them.
func (r *RetryCoordinator) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.items = make(map[string]*WorkItem)
}

// RetryAll resets every tracked item to pending, clears its failure info and
// resubmits the set with the original conversion options. Items that succeed
// leave the set; items that fail again stay. An empty set is a no-op that
// never invokes the scheduler.
func (r *RetryCoordinator) RetryAll(ctx context.Context, sched Submitter, limit int, onProgress ProgressFunc) (*BatchResult, error) {
	r.mu.Lock()
	items := make([]*WorkItem, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.items[id])
	}
	r.mu.Unlock()

	if len(items) == 0 {
		return &BatchResult{}, nil
	}

	for _, item := range items {
		item.resetForRetry()
	}

	r.logger.Info("Retrying failed items", zap.Int("count", len(items)))

	result, err := sched.Submit(ctx, items, limit, onProgress)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, item := range result.Succeeded {
		if _, ok := r.items[item.ID]; !ok {
			continue
		}
		delete(r.items, item.ID)
		for i, id := range r.order {
			if id == item.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	return result, nil
}
