// Package jobs runs the periodic billing reconciliations. Each run takes a
// named lock first so that only one replica executes a job at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/lock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/metrics"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobBusy    = errors.New("job is already running")
)

// Job is one periodic task. Run returns how many records it changed.
type Job struct {
	Name       string
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) (int, error)
}

type Runner struct {
	locker lock.Locker
	mu     sync.Mutex
	jobs   map[string]Job
	order  []string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(locker lock.Locker) *Runner {
	return &Runner{locker: locker, jobs: make(map[string]Job)}
}

// Add registers job. Jobs added after Start are not scheduled.
func (r *Runner) Add(job Job) {
	if job.Timeout <= 0 {
		job.Timeout = 10 * time.Minute
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name]; !exists {
		r.order = append(r.order, job.Name)
	}
	r.jobs[job.Name] = job
}

func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Start launches one ticker goroutine per job with a positive interval.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.jobs[name])
	}
	r.mu.Unlock()

	for _, job := range jobs {
		if job.Interval <= 0 {
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Stop cancels every loop and waits for in-flight runs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	if job.RunOnStart {
		r.runScheduled(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.runScheduled(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runScheduled(ctx context.Context, job Job) {
	_, err := r.run(ctx, job)
	switch {
	case errors.Is(err, ErrJobBusy):
		slog.Debug("job skipped, lock held elsewhere", "job", job.Name)
	case err != nil && ctx.Err() == nil:
		slog.Error("job failed", "job", job.Name, "action", "job_run", "error", err.Error())
	}
}

// RunNow executes the named job immediately, under the same lock the
// scheduled runs use.
func (r *Runner) RunNow(ctx context.Context, name string) (int, error) {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return r.run(ctx, job)
}

func (r *Runner) run(parent context.Context, job Job) (n int, err error) {
	token, ok, err := r.locker.TryLock(parent, "job:"+job.Name, job.Timeout)
	if err != nil {
		return 0, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return 0, ErrJobBusy
	}
	defer func() {
		// The parent may already be cancelled; release on a fresh context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := r.locker.Release(releaseCtx, "job:"+job.Name, token); rerr != nil {
			slog.Warn("job lock release failed", "job", job.Name, "error", rerr.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(parent, job.Timeout)
	defer cancel()

	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
		metrics.ObserveJob(job.Name, started, err)
	}()

	n, err = job.Run(ctx)
	slog.Info("job finished", "job", job.Name, "affected", n, "latency_ms", time.Since(started).Milliseconds())
	return n, err
}
