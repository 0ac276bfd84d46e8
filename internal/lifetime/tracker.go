// Package lifetime tracks the disposable instances a container creates and
// closes them, newest first, when the container is closed.
package lifetime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds the context handed to context-aware closers.
const DefaultTimeout = 30 * time.Second

// Closer matches servicebridge.Disposable.
type Closer interface {
	Close() error
}

// ContextCloser matches servicebridge.DisposableWithContext.
type ContextCloser interface {
	Close(ctx context.Context) error
}

// Statistics counts what a Tracker has seen.
type Statistics struct {
	Tracked  int64
	Disposed int64
	Failed   int64
}

// Tracker records disposable instances in creation order.
type Tracker struct {
	mu        sync.Mutex
	instances []any

	timeout   time.Duration
	onDispose func(instance any, err error)

	tracked  atomic.Int64
	disposed atomic.Int64
	failed   atomic.Int64
	closed   atomic.Bool
}

// NewTracker creates a Tracker. onDispose, when set, is called after each
// instance is closed, with the error it returned.
func NewTracker(timeout time.Duration, onDispose func(instance any, err error)) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{timeout: timeout, onDispose: onDispose}
}

// Track records instance if it implements Closer or ContextCloser and
// reports whether it did. Instances arriving after Dispose are not recorded.
func (t *Tracker) Track(instance any) bool {
	switch instance.(type) {
	case ContextCloser, Closer:
	default:
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return false
	}
	t.instances = append(t.instances, instance)
	t.tracked.Add(1)
	return true
}

// IsDisposed reports whether Dispose has been called.
func (t *Tracker) IsDisposed() bool {
	return t.closed.Load()
}

// Dispose closes every tracked instance in reverse order and joins their
// errors. Only the first call does any work.
func (t *Tracker) Dispose() error {
	t.mu.Lock()
	if !t.closed.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return nil
	}
	instances := t.instances
	t.instances = nil
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	var errs []error
	for i := len(instances) - 1; i >= 0; i-- {
		err := closeInstance(ctx, instances[i])
		if err != nil {
			errs = append(errs, err)
			t.failed.Add(1)
		}
		t.disposed.Add(1)
		if t.onDispose != nil {
			t.onDispose(instances[i], err)
		}
	}
	return errors.Join(errs...)
}

// Statistics returns the current counters.
func (t *Tracker) Statistics() Statistics {
	return Statistics{
		Tracked:  t.tracked.Load(),
		Disposed: t.disposed.Load(),
		Failed:   t.failed.Load(),
	}
}

func closeInstance(ctx context.Context, instance any) error {
	switch d := instance.(type) {
	case ContextCloser:
		return d.Close(ctx)
	case Closer:
		return d.Close()
	}
	return nil
}
