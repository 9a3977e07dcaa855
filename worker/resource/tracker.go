// Package resource guards the lifecycle of ephemeral preview handles: the
// on-disk indirections that let an image be displayed without re-reading
// its source bytes. Every handle must be released exactly once.
package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies one tracked preview resource.
type Handle string

// ResourceError marks a handle-registry invariant violation: a release of an
// untracked handle, or a read after release. It is fatal only to the
// offending operation, never to the batch.
type ResourceError struct {
	Handle Handle
	Op     string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %s on unknown or released handle %s", e.Op, e.Handle)
}

// Tracker is the single shared registry of live preview handles. All
// mutations are serialized behind one mutex; item processing may be
// parallel, the registry is not.
type Tracker struct {
	logger *zap.Logger
	dir    string

	mu      sync.Mutex
	handles map[Handle]string
}

func NewTracker(dir string, logger *zap.Logger) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Tracker{
		logger:  logger,
		dir:     dir,
		handles: make(map[Handle]string),
	}, nil
}

// Create writes preview bytes to disk and tracks the resulting handle.
func (t *Tracker) Create(data []byte, ext string) (Handle, error) {
	h := Handle(uuid.New().String() + ext)
	path := filepath.Join(t.dir, string(h))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}

	t.track(h, path)
	return h, nil
}

// Track registers an already materialized handle. Tracking a handle twice
// is a no-op.
func (t *Tracker) Track(h Handle, path string) {
	t.track(h, path)
}

func (t *Tracker) track(h Handle, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[h]; ok {
		return
	}
	t.handles[h] = path
}

// Open reads the bytes behind a handle. Reading a released handle is an
// invariant violation and returns a ResourceError.
func (t *Tracker) Open(h Handle) ([]byte, error) {
	t.mu.Lock()
	path, ok := t.handles[h]
	t.mu.Unlock()

	if !ok {
		err := &ResourceError{Handle: h, Op: "open"}
		t.logger.Error("Preview handle invariant violated", zap.String("handle", string(h)), zap.Error(err))
		return nil, err
	}
	return os.ReadFile(path)
}

// Release frees a handle and removes it from the registry. Releasing a
// handle that was never tracked, or releasing twice, returns a
// ResourceError.
func (t *Tracker) Release(h Handle) error {
	t.mu.Lock()
	path, ok := t.handles[h]
	if ok {
		delete(t.handles, h)
	}
	t.mu.Unlock()

	if !ok {
		err := &ResourceError{Handle: h, Op: "release"}
		t.logger.Error("Preview handle invariant violated", zap.String("handle", string(h)), zap.Error(err))
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview: %w", err)
	}
	return nil
}

// ReleaseAll frees every tracked handle and reports how many were released.
// Invoked on full batch clear and on teardown.
func (t *Tracker) ReleaseAll() int {
	t.mu.Lock()
	handles := make(map[Handle]string, len(t.handles))
	for h, path := range t.handles {
		handles[h] = path
	}
	t.handles = make(map[Handle]string)
	t.mu.Unlock()

	for h, path := range handles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("Failed to remove preview file",
				zap.String("handle", string(h)),
				zap.Error(err),
			)
		}
	}
	return len(handles)
}

// Outstanding reports how many handles are tracked and not yet released.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
