package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"imageConverter/worker/codec"
)

// countingSubmitter records submissions and delegates to a real scheduler.
type countingSubmitter struct {
	sched *Scheduler
	calls int
	last  []*WorkItem
}

func (c *countingSubmitter) Submit(ctx context.Context, items []*WorkItem, limit int, onProgress ProgressFunc) (*BatchResult, error) {
	c.calls++
	c.last = items
	return c.sched.Submit(ctx, items, limit, onProgress)
}

func failedItem(t *testing.T, name string) *WorkItem {
	t.Helper()
	item := NewWorkItem(name, 64, BytesSource([]byte("raw")), codec.DefaultOptions())
	if !item.markProcessing() {
		t.Fatalf("Failed to claim %s", name)
	}
	item.fail(&ErrorInfo{Reason: codec.ReasonCorruptInput, Message: "bad header"})
	return item
}

func TestRetryCoordinator_EmptySetNeverSubmits(t *testing.T) {
	sub := &countingSubmitter{sched: NewScheduler(&fakeInvoker{}, zaptest.NewLogger(t))}
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	result, err := coord.RetryAll(context.Background(), sub, 4, nil)
	if err != nil {
		t.Fatalf("RetryAll failed: %v", err)
	}
	if sub.calls != 0 {
		t.Errorf("Scheduler invoked %d times for an empty set", sub.calls)
	}
	if len(result.Succeeded) != 0 || len(result.Failed) != 0 {
		t.Errorf("Expected empty result, got %d/%d", len(result.Succeeded), len(result.Failed))
	}
}

func TestRetryCoordinator_IgnoresNonFailedItems(t *testing.T) {
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	pending := NewWorkItem("pending.jpg", 64, BytesSource([]byte("raw")), codec.DefaultOptions())
	failed := failedItem(t, "failed.jpg")

	coord.AddFailures(pending, failed)

	if coord.Len() != 1 {
		t.Fatalf("Expected 1 tracked item, got %d", coord.Len())
	}
	if ids := coord.IDs(); len(ids) != 1 || ids[0] != failed.ID {
		t.Errorf("Expected [%s], got %v", failed.ID, ids)
	}
}

func TestRetryCoordinator_DeduplicatesByID(t *testing.T) {
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	a := failedItem(t, "a.jpg")
	b := failedItem(t, "b.jpg")

	coord.AddFailures(a, b)
	coord.AddFailures(a)

	if coord.Len() != 2 {
		t.Fatalf("Expected 2 tracked items, got %d", coord.Len())
	}
	if ids := coord.IDs(); ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("Insertion order not preserved: %v", ids)
	}
}

func TestRetryCoordinator_RetryAllResetsAndResubmits(t *testing.T) {
	sub := &countingSubmitter{sched: NewScheduler(&fakeInvoker{}, zaptest.NewLogger(t))}
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	a := failedItem(t, "a.jpg")
	b := failedItem(t, "b.jpg")
	coord.AddFailures(a, b)

	result, err := coord.RetryAll(context.Background(), sub, 2, nil)
	if err != nil {
		t.Fatalf("RetryAll failed: %v", err)
	}

	if sub.calls != 1 {
		t.Fatalf("Expected one submission, got %d", sub.calls)
	}
	if len(sub.last) != 2 {
		t.Fatalf("Expected both items resubmitted, got %d", len(sub.last))
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("Expected 2 succeeded, got %d", len(result.Succeeded))
	}

	// Both succeeded, so the retry set drains.
	if coord.Len() != 0 {
		t.Errorf("Expected empty set after success, got %d", coord.Len())
	}
	for _, item := range []*WorkItem{a, b} {
		if item.Status() != StatusDone {
			t.Errorf("%s: expected done, got %s", item.OriginalName, item.Status())
		}
		if item.ErrInfo() != nil {
			t.Errorf("%s: stale error info after retry", item.OriginalName)
		}
	}
}

func TestRetryCoordinator_RepeatFailuresStayTracked(t *testing.T) {
	invoker := &fakeInvoker{
		fn: func(ctx context.Context, data []byte, opts codec.Options) ([]byte, error) {
			if string(data) == "bad" {
				return nil, &codec.Failure{Reason: codec.ReasonCorruptInput, Msg: "still corrupt"}
			}
			return []byte("encoded"), nil
		},
	}
	sub := &countingSubmitter{sched: NewScheduler(invoker, zaptest.NewLogger(t))}
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	good := NewWorkItem("recovers.jpg", 64, BytesSource([]byte("raw")), codec.DefaultOptions())
	bad := NewWorkItem("hopeless.jpg", 64, BytesSource([]byte("bad")), codec.DefaultOptions())
	for _, item := range []*WorkItem{good, bad} {
		item.markProcessing()
		item.fail(&ErrorInfo{Reason: codec.ReasonInternal, Message: "first attempt"})
	}
	coord.AddFailures(good, bad)

	result, err := coord.RetryAll(context.Background(), sub, 2, nil)
	if err != nil {
		t.Fatalf("RetryAll failed: %v", err)
	}

	if len(result.Succeeded) != 1 || len(result.Failed) != 1 {
		t.Fatalf("Expected 1/1 partition, got %d/%d", len(result.Succeeded), len(result.Failed))
	}
	if coord.Len() != 1 {
		t.Fatalf("Expected the repeat failure to stay tracked, got %d", coord.Len())
	}
	if ids := coord.IDs(); ids[0] != bad.ID {
		t.Errorf("Wrong item tracked: %v", ids)
	}
	if info := bad.ErrInfo(); info == nil || info.Reason != codec.ReasonCorruptInput {
		t.Errorf("Expected refreshed failure info, got %+v", info)
	}
}

func TestRetryCoordinator_ClearKeepsItemState(t *testing.T) {
	coord := NewRetryCoordinator(zaptest.NewLogger(t))

	item := failedItem(t, "dismissed.jpg")
	coord.AddFailures(item)
	coord.Clear()

	if coord.Len() != 0 {
		t.Errorf("Expected empty set, got %d", coord.Len())
	}
	if item.Status() != StatusError {
		t.Errorf("Clear must not touch item state, got %s", item.Status())
	}
}
