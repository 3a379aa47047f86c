package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/lease-lock/internal/metrics"
)

// DefaultPollInterval is the delay between acquisition attempts while a
// resource is contended.
const DefaultPollInterval = 100 * time.Millisecond

// Locker acquires lease locks against a shared store.
// It is safe for concurrent use; every Acquire call polls the store
// independently and no in-process state coordinates callers.
type Locker struct {
	store        Store
	clock        clockwork.Clock
	pollInterval time.Duration
	logger       zerolog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithPollInterval sets the delay between acquisition attempts.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.pollInterval = d
	}
}

// WithClock sets the time source. Tests use a fake clock to drive the
// polling loop deterministically.
func WithClock(c clockwork.Clock) LockerOption {
	return func(l *Locker) {
		l.clock = c
	}
}

// NewLocker creates a Locker over the given store.
func NewLocker(store Store, logger zerolog.Logger, opts ...LockerOption) *Locker {
	l := &Locker{
		store:        store,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains the lock for resource, waiting up to timeout.
//
// The same timeout is also the lease duration: once acquired, other callers
// may treat the lease as expired and reclaim the resource after timeout
// elapses. Acquire returns ErrAcquireTimeout when the deadline passes
// without the conditional insert succeeding, or ctx.Err() when the context
// is cancelled during the wait. Store failures propagate to the caller
// unchanged in meaning; only contention (zero rows written) is retried.
func (l *Locker) Acquire(ctx context.Context, resource string, timeout time.Duration) (*Handle, error) {
	start := l.clock.Now()
	deadline := start.Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			metrics.RecordLockAcquisition("cancelled")
			return nil, err
		}

		now := l.clock.Now()
		n, err := l.store.ConditionalInsert(ctx, resource, now, now.Add(-timeout))
		if err != nil {
			metrics.RecordLockAcquisition("error")
			return nil, fmt.Errorf("conditional insert for %q: %w", resource, err)
		}
		if n == 1 {
			metrics.RecordLockAcquisition("acquired")
			metrics.RecordLockAcquireWait(l.clock.Since(start).Seconds())
			metrics.IncHeldLeases()
			l.logger.Debug().Str("resource", resource).Dur("waited", l.clock.Since(start)).Msg("lock acquired")
			return &Handle{
				locker:     l,
				resource:   resource,
				timeout:    timeout,
				acquiredAt: now,
				held:       true,
			}, nil
		}

		if !l.clock.Now().Before(deadline) {
			metrics.RecordLockAcquisition("timeout")
			return nil, ErrAcquireTimeout
		}

		select {
		case <-ctx.Done():
			metrics.RecordLockAcquisition("cancelled")
			return nil, ctx.Err()
		case <-l.clock.After(l.pollInterval):
		}

		// Re-check after the wait so a poll that ends past the deadline
		// reports a timeout instead of attempting one more insert, which
		// could reclaim a lease the caller was meant to give up on.
		if !l.clock.Now().Before(deadline) {
			metrics.RecordLockAcquisition("timeout")
			return nil, ErrAcquireTimeout
		}
	}
}

// AcquireMany obtains locks for every resource, each with the given
// timeout, acquiring in case-insensitive lexicographic order so that all
// callers taking the same set approach it in the same sequence. On any
// failure the already-acquired locks are released and the error returned.
func (l *Locker) AcquireMany(ctx context.Context, resources []string, timeout time.Duration) ([]*Handle, error) {
	ordered := make([]string, len(resources))
	copy(ordered, resources)
	sortResources(ordered)

	handles := make([]*Handle, 0, len(ordered))
	for _, resource := range ordered {
		h, err := l.Acquire(ctx, resource, timeout)
		if err != nil {
			for i := len(handles) - 1; i >= 0; i-- {
				_ = handles[i].Close()
			}
			return nil, fmt.Errorf("acquire %q: %w", resource, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Do runs fn while holding the lock for resource. The lock is always
// released when fn returns, on every exit path; a release failure is
// logged rather than allowed to mask fn's error.
func (l *Locker) Do(ctx context.Context, resource string, timeout time.Duration, fn func(ctx context.Context) error) error {
	h, err := l.Acquire(ctx, resource, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := h.Close(); rerr != nil {
			l.logger.Warn().Err(rerr).Str("resource", resource).Msg("failed to release lock")
		}
	}()
	return fn(ctx)
}

// ForceRelease unconditionally removes every lease record for resource,
// including one held by another instance. Operator escape hatch only.
func (l *Locker) ForceRelease(ctx context.Context, resource string) error {
	if err := l.store.DeleteAll(ctx, resource); err != nil {
		return fmt.Errorf("force release %q: %w", resource, err)
	}
	return nil
}

// Handle represents an acquired (or released) lease on a resource.
// A handle is owned by the caller that acquired it and must not be shared
// across concurrent acquirers, though Release and Close themselves are
// safe to call from multiple goroutines.
type Handle struct {
	locker     *Locker
	resource   string
	timeout    time.Duration
	acquiredAt time.Time

	mu   sync.Mutex
	held bool
}

// Resource returns the name of the locked resource.
func (h *Handle) Resource() string {
	return h.resource
}

// AcquiredAt returns the store timestamp of the acquisition.
func (h *Handle) AcquiredAt() time.Time {
	return h.acquiredAt
}

// Timeout returns the lease duration of the handle.
func (h *Handle) Timeout() time.Duration {
	return h.timeout
}

// IsHeld returns true while this handle believes it holds the lease.
func (h *Handle) IsHeld() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.held
}

// Release deletes the lease record written by this handle. It is
// idempotent, and if the lease expired and was reclaimed by another holder
// the delete is a no-op: the new holder's record has a different timestamp
// and is not touched.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.held {
		return nil
	}
	if err := h.locker.store.Delete(ctx, h.resource, h.acquiredAt); err != nil {
		return fmt.Errorf("release %q: %w", h.resource, err)
	}
	h.held = false
	metrics.DecHeldLeases()
	h.locker.logger.Debug().Str("resource", h.resource).Msg("lock released")
	return nil
}

// Close releases the lease with a background context. Safe to call
// multiple times and after Release.
func (h *Handle) Close() error {
	return h.Release(context.Background())
}
