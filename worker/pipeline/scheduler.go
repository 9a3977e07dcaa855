package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"imageConverter/worker/codec"
)

// DefaultConcurrency bounds in-flight encodes when the caller passes no limit.
const DefaultConcurrency = 4

// ProgressFunc receives per-item progress: 0 on dispatch, 100 on terminal.
type ProgressFunc func(item *WorkItem, percent int)

// BatchResult partitions a completed run. Items cancelled mid-flight land in
// Reverted; they are back in pending and eligible for a later run.
type BatchResult struct {
	Succeeded []*WorkItem
	Failed    []*WorkItem
	Reverted  []*WorkItem
}

// Scheduler drains work items through the codec invoker with at most N
// encodes in flight. A single item's failure never disturbs its siblings.
type Scheduler struct {
	invoker codec.Invoker
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	admit    context.CancelFunc
}

func NewScheduler(invoker codec.Invoker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		invoker:  invoker,
		logger:   logger,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Submit runs every pending item through the invoker and blocks until all
// dispatched items reach a terminal state or revert via cancellation.
//
// Options are validated for the whole batch up front; a bad set rejects the
// submission before any item leaves pending. Item failures after that point
// are contained in the item's ErrorInfo and never returned as an error.
func (s *Scheduler) Submit(ctx context.Context, items []*WorkItem, limit int, onProgress ProgressFunc) (*BatchResult, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	for _, item := range items {
		if err := item.Options.Validate(); err != nil {
			return nil, &ValidationError{ItemID: item.ID, ItemName: item.OriginalName, Err: err}
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	s.mu.Lock()
	s.admit = cancelRun
	s.mu.Unlock()

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	result := &BatchResult{}
	var resultMu sync.Mutex

	for _, item := range items {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			// Remaining items stay pending.
			wg.Wait()
			return result, nil
		}

		if !item.markProcessing() {
			<-sem
			continue
		}

		itemCtx, cancelItem := context.WithCancel(runCtx)
		s.register(item.ID, cancelItem)

		wg.Add(1)
		go func(item *WorkItem, itemCtx context.Context, cancelItem context.CancelFunc) {
			defer wg.Done()
			defer func() { <-sem }()
			defer cancelItem()
			defer s.unregister(item.ID)

			s.run(itemCtx, item, onProgress, result, &resultMu)
		}(item, itemCtx, cancelItem)
	}

	wg.Wait()
	return result, nil
}

func (s *Scheduler) run(ctx context.Context, item *WorkItem, onProgress ProgressFunc, result *BatchResult, resultMu *sync.Mutex) {
	if onProgress != nil {
		onProgress(item, 0)
	}

	encoded, err := s.encodeItem(ctx, item)

	if ctx.Err() != nil {
		item.revert()
		s.logger.Info("Item cancelled",
			zap.String("item_id", item.ID),
			zap.String("filename", item.OriginalName),
		)
		resultMu.Lock()
		result.Reverted = append(result.Reverted, item)
		resultMu.Unlock()
		return
	}

	if err != nil {
		info := classify(err)
		item.fail(info)
		if onProgress != nil {
			onProgress(item, 100)
		}
		s.logger.Warn("Item failed",
			zap.String("item_id", item.ID),
			zap.String("filename", item.OriginalName),
			zap.String("reason", string(info.Reason)),
			zap.Error(err),
		)
		resultMu.Lock()
		result.Failed = append(result.Failed, item)
		resultMu.Unlock()
		return
	}

	item.complete(encoded)
	if onProgress != nil {
		onProgress(item, 100)
	}
	resultMu.Lock()
	result.Succeeded = append(result.Succeeded, item)
	resultMu.Unlock()
}

// encodeItem scopes the input buffer to the invoker call so ownership of
// the source bytes ends when the call resolves, keeping peak memory bound
// by the concurrency limit.
func (s *Scheduler) encodeItem(ctx context.Context, item *WorkItem) ([]byte, error) {
	data, err := item.openSource(ctx)
	if err != nil {
		return nil, err
	}
	return s.invoker.Encode(ctx, data, item.Options)
}

// Cancel aborts a single in-flight item. The item reverts to pending with
// no result attached and its slot frees immediately. Unknown or settled ids
// are ignored.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	cancel := s.inflight[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CancelAll aborts every in-flight item and stops admission of the current
// run; undispatched items remain pending.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	admit := s.admit
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for _, cancel := range s.inflight {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	if admit != nil {
		admit()
	}
	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Scheduler) register(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()
}

func (s *Scheduler) unregister(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
