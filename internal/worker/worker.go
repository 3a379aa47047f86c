// Package worker processes queued jobs, serializing work per resource
// through the distributed lease lock.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/lease-lock/internal/job"
	"github.com/kneutral-org/lease-lock/internal/lock"
	"github.com/kneutral-org/lease-lock/internal/logging"
	"github.com/kneutral-org/lease-lock/internal/metrics"
)

// Handler processes a single claimed job. It runs while the lease lock
// for the job's resource is held.
type Handler func(ctx context.Context, j *job.Job) error

// Dispatcher claims pending jobs and runs the handler under the resource
// lock. Multiple dispatcher instances may share one job store; the lock
// guarantees jobs for the same resource never run concurrently.
type Dispatcher struct {
	jobs    job.Store
	locker  *lock.Locker
	handler Handler
	logger  zerolog.Logger

	pollInterval time.Duration
	lockTimeout  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval sets how often the dispatcher polls for pending jobs
// when the queue is empty.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(w *Dispatcher) {
		w.pollInterval = d
	}
}

// WithLockTimeout sets the acquisition timeout (and lease duration) used
// for each job's resource lock.
func WithLockTimeout(d time.Duration) DispatcherOption {
	return func(w *Dispatcher) {
		w.lockTimeout = d
	}
}

// NewDispatcher creates a dispatcher over the given job store and locker.
func NewDispatcher(jobs job.Store, locker *lock.Locker, handler Handler, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		jobs:         jobs,
		locker:       locker,
		handler:      handler,
		logger:       logger,
		pollInterval: time.Second,
		lockTimeout:  30 * time.Second,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop stops the dispatch loop and waits for an in-flight job to finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	// Drain immediately on start
	d.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain processes pending jobs until the queue is empty or a stop is
// requested.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		default:
		}

		j, err := d.jobs.NextPending(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to claim pending job")
			return
		}
		if j == nil {
			return
		}

		d.process(ctx, j)
	}
}

func (d *Dispatcher) process(ctx context.Context, j *job.Job) {
	log := logging.JobLogger(d.logger, j.ID, j.Resource)

	metrics.IncJobsInFlight()
	defer metrics.DecJobsInFlight()

	start := time.Now()
	err := d.locker.Do(ctx, j.Resource, d.lockTimeout, func(ctx context.Context) error {
		return d.handler(ctx, j)
	})

	switch {
	case err == nil:
		metrics.RecordJobProcessed("completed")
		metrics.RecordJobProcessingDuration(time.Since(start).Seconds())
		if cerr := d.jobs.Complete(ctx, j.ID); cerr != nil {
			log.Error().Err(cerr).Msg("failed to mark job completed")
			return
		}
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")

	case errors.Is(err, lock.ErrAcquireTimeout):
		// Another instance holds the resource; give the job back.
		metrics.RecordJobProcessed("requeued")
		if rerr := d.jobs.Requeue(ctx, j.ID); rerr != nil {
			log.Error().Err(rerr).Msg("failed to requeue job")
			return
		}
		log.Warn().Msg("resource locked elsewhere, job requeued")

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Shutdown mid-claim; give the job back for the next run.
		metrics.RecordJobProcessed("requeued")
		if rerr := d.jobs.Requeue(context.WithoutCancel(ctx), j.ID); rerr != nil {
			log.Error().Err(rerr).Msg("failed to requeue job on shutdown")
		}

	default:
		metrics.RecordJobProcessed("failed")
		if ferr := d.jobs.Fail(ctx, j.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to mark job failed")
			return
		}
		log.Error().Err(err).Msg("job failed")
	}
}
