package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"imageConverter/worker/codec"
	"imageConverter/worker/kafka"
	"imageConverter/worker/pipeline"
	"imageConverter/worker/repository"
	"imageConverter/worker/resource"
	"imageConverter/worker/storage"
)

// Batch statuses persisted alongside the per-item lifecycle.
const (
	BatchStatusPending            = "pending"
	BatchStatusProcessing         = "processing"
	BatchStatusCompleted          = "completed"
	BatchStatusCompletedWithFails = "completed_with_errors"
)

// StatusCache receives item and batch status transitions as they happen.
// Satisfied by the redis-backed cache.
type StatusCache interface {
	SetItem(ctx context.Context, itemID string, status string) error
	SetBatch(ctx context.Context, batchID string, status string) error
}

// Processor drives the conversion pipeline for one consumed batch message.
// Each batch gets its own scheduler session so cancellation targets the
// right run; the retry coordinator outlives the run until the batch is
// retried or dropped.
type Processor struct {
	repo        repository.Repository
	cache       StatusCache
	store       storage.FileStorage
	invoker     codec.Invoker
	tracker     *resource.Tracker
	logger      *zap.Logger
	concurrency int

	mu       sync.Mutex
	sessions map[string]*batchSession
}

type batchSession struct {
	sched *pipeline.Scheduler
	retry *pipeline.RetryCoordinator
}

func NewProcessor(
	repo repository.Repository,
	cache StatusCache,
	store storage.FileStorage,
	invoker codec.Invoker,
	tracker *resource.Tracker,
	concurrency int,
	logger *zap.Logger,
) *Processor {
	if concurrency <= 0 {
		concurrency = pipeline.DefaultConcurrency
	}
	return &Processor{
		repo:        repo,
		cache:       cache,
		store:       store,
		invoker:     invoker,
		tracker:     tracker,
		logger:      logger,
		concurrency: concurrency,
		sessions:    make(map[string]*batchSession),
	}
}

func (p *Processor) Process(ctx context.Context, msg *kafka.BatchMessage) error {
	switch msg.Action {
	case kafka.ActionProcess, "":
		return p.processBatch(ctx, msg)
	case kafka.ActionRetry:
		return p.retryBatch(ctx, msg)
	case kafka.ActionCancelItem:
		p.cancelItem(msg)
		return nil
	case kafka.ActionCancelBatch:
		p.cancelBatch(msg)
		return nil
	case kafka.ActionClear:
		p.clear(msg)
		return nil
	default:
		p.logger.Warn("Unknown batch action",
			zap.String("trace_id", msg.TraceID),
			zap.String("action", string(msg.Action)),
		)
		return nil
	}
}

func (p *Processor) processBatch(ctx context.Context, msg *kafka.BatchMessage) error {
	records, err := p.repo.GetBatchItems(ctx, msg.BatchID)
	if err != nil {
		p.logger.Error("Failed to load batch items",
			zap.String("trace_id", msg.TraceID),
			zap.String("batch_id", msg.BatchID),
			zap.Error(err),
		)
		return err
	}

	items := make([]*pipeline.WorkItem, 0, len(records))
	for _, rec := range records {
		if rec.Status != string(pipeline.StatusPending) {
			continue
		}
		items = append(items, p.buildItem(rec))
	}
	if len(items) == 0 {
		p.logger.Info("Batch has no pending items",
			zap.String("trace_id", msg.TraceID),
			zap.String("batch_id", msg.BatchID),
		)
		return nil
	}

	session := p.session(msg.BatchID)

	if err := p.repo.UpdateBatchStatus(ctx, msg.BatchID, BatchStatusProcessing); err != nil {
		return err
	}
	p.setBatchCache(ctx, msg.BatchID, BatchStatusProcessing)

	p.logger.Info("Batch processing started",
		zap.String("trace_id", msg.TraceID),
		zap.String("batch_id", msg.BatchID),
		zap.Int("items", len(items)),
		zap.Int("concurrency", p.concurrency),
	)

	result, err := session.sched.Submit(ctx, items, p.concurrency, p.progressFunc(ctx, msg.BatchID))
	if err != nil {
		p.logger.Error("Batch submission rejected",
			zap.String("trace_id", msg.TraceID),
			zap.String("batch_id", msg.BatchID),
			zap.Error(err),
		)
		return err
	}

	return p.finishRun(ctx, msg, session, result)
}

func (p *Processor) retryBatch(ctx context.Context, msg *kafka.BatchMessage) error {
	session := p.lookupSession(msg.BatchID)
	if session == nil || session.retry.Len() == 0 {
		p.logger.Info("Nothing to retry",
			zap.String("trace_id", msg.TraceID),
			zap.String("batch_id", msg.BatchID),
		)
		return nil
	}

	for _, id := range session.retry.IDs() {
		p.setItemStatus(ctx, id, string(pipeline.StatusPending), "", "")
	}

	result, err := session.retry.RetryAll(ctx, session.sched, p.concurrency, p.progressFunc(ctx, msg.BatchID))
	if err != nil {
		return err
	}

	return p.finishRun(ctx, msg, session, result)
}

func (p *Processor) cancelItem(msg *kafka.BatchMessage) {
	if session := p.lookupSession(msg.BatchID); session != nil {
		session.sched.Cancel(msg.ItemID)
	}
}

func (p *Processor) cancelBatch(msg *kafka.BatchMessage) {
	if session := p.lookupSession(msg.BatchID); session != nil {
		session.sched.CancelAll()
	}
}

// clear releases the preview handles of removed items. A handle unknown to
// this tracker (worker restarted since it was created) only logs; the api
// already removed the rows and files it owns.
func (p *Processor) clear(msg *kafka.BatchMessage) {
	for _, h := range msg.Handles {
		if err := p.tracker.Release(resource.Handle(h)); err != nil {
			p.logger.Warn("Preview handle already released",
				zap.String("trace_id", msg.TraceID),
				zap.String("handle", h),
			)
		}
	}
	if msg.ItemID == "" {
		p.DropSession(msg.BatchID)
	}
}

func (p *Processor) finishRun(ctx context.Context, msg *kafka.BatchMessage, session *batchSession, result *pipeline.BatchResult) error {
	session.retry.AddFailures(result.Failed...)

	// Cancelled items reverted to pending in memory; the rows marked
	// processing at dispatch have to follow, or the items strand.
	for _, item := range result.Reverted {
		p.setItemStatus(ctx, item.ID, string(pipeline.StatusPending), "", "")
	}

	status := BatchStatusCompleted
	switch {
	case len(result.Reverted) > 0:
		status = BatchStatusPending
	case session.retry.Len() > 0:
		status = BatchStatusCompletedWithFails
	}
	if err := p.repo.UpdateBatchStatus(ctx, msg.BatchID, status); err != nil {
		return err
	}
	p.setBatchCache(ctx, msg.BatchID, status)

	p.logger.Info("Batch run finished",
		zap.String("trace_id", msg.TraceID),
		zap.String("batch_id", msg.BatchID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("reverted", len(result.Reverted)),
	)
	return nil
}

// setItemStatus writes an item transition to Postgres and the status cache.
// Failures are logged, not returned; a stale row is recoverable, a stalled
// batch run is not.
func (p *Processor) setItemStatus(ctx context.Context, itemID, status, errReason, errMsg string) {
	if err := p.repo.UpdateItemStatus(ctx, itemID, status, errReason, errMsg); err != nil {
		p.logger.Error("Failed to persist item status",
			zap.String("item_id", itemID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
	p.setItemCache(ctx, itemID, status)
}

func (p *Processor) setItemCache(ctx context.Context, itemID, status string) {
	if err := p.cache.SetItem(ctx, itemID, status); err != nil {
		p.logger.Warn("Failed to cache item status",
			zap.String("item_id", itemID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (p *Processor) setBatchCache(ctx context.Context, batchID, status string) {
	if err := p.cache.SetBatch(ctx, batchID, status); err != nil {
		p.logger.Warn("Failed to cache batch status",
			zap.String("batch_id", batchID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (p *Processor) buildItem(rec repository.ItemRecord) *pipeline.WorkItem {
	batchID, itemID := rec.BatchID, rec.ID
	src := pipeline.SourceFunc(func(context.Context) ([]byte, error) {
		return p.store.Read(storage.OriginalPath(batchID, itemID))
	})

	opts := codec.Options{
		Format:              codec.Format(rec.Format),
		Quality:             rec.Quality,
		Width:               rec.Width,
		Height:              rec.Height,
		MaintainAspectRatio: rec.MaintainAspectRatio,
		ResizeMode:          codec.ResizeMode(rec.ResizeMode),
	}

	return pipeline.NewWorkItemWithID(rec.ID, rec.OriginalFilename, rec.OriginalSize, src, opts)
}

// progressFunc propagates item transitions to Postgres and the status cache
// and, on success, persists the converted bytes and a preview handle.
func (p *Processor) progressFunc(ctx context.Context, batchID string) pipeline.ProgressFunc {
	return func(item *pipeline.WorkItem, percent int) {
		status := item.Status()

		switch status {
		case pipeline.StatusProcessing:
			p.setItemStatus(ctx, item.ID, string(status), "", "")
		case pipeline.StatusDone:
			// persistResult writes the done row itself; only the cache
			// needs a follow-up here.
			if err := p.persistResult(ctx, batchID, item); err != nil {
				p.logger.Error("Failed to persist converted item",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				p.setItemStatus(ctx, item.ID, string(pipeline.StatusError), string(codec.ReasonInternal), err.Error())
				return
			}
			p.setItemCache(ctx, item.ID, string(status))
		case pipeline.StatusError:
			info := item.ErrInfo()
			p.setItemStatus(ctx, item.ID, string(status), string(info.Reason), info.Message)
		}
	}
}

func (p *Processor) persistResult(ctx context.Context, batchID string, item *pipeline.WorkItem) error {
	ext := item.Options.Format.Ext()
	resultPath := storage.ConvertedPath(batchID, item.ID, ext)

	if err := p.store.Save(resultPath, bytes.NewReader(item.Result())); err != nil {
		return fmt.Errorf("save converted bytes: %w", err)
	}

	handle, err := p.tracker.Create(item.Result(), ext)
	if err != nil {
		return fmt.Errorf("create preview handle: %w", err)
	}
	item.ResultPreviewHandle = string(handle)

	return p.repo.SetItemResult(ctx, item.ID, resultPath, string(handle))
}

func (p *Processor) session(batchID string) *batchSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[batchID]; ok {
		return s
	}
	s := &batchSession{
		sched: pipeline.NewScheduler(p.invoker, p.logger),
		retry: pipeline.NewRetryCoordinator(p.logger),
	}
	p.sessions[batchID] = s
	return s
}

func (p *Processor) lookupSession(batchID string) *batchSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[batchID]
}

// DropSession forgets a batch session after the caller cleared the batch.
func (p *Processor) DropSession(batchID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, batchID)
}
