// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jobs runs pipeline stages in the background on a bounded worker
// pool and tracks their progress.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrClosed     = errors.New("job runner closed")
	ErrQueueFull  = errors.New("job queue full")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	// externalBuffer bounds reports queued for a job's external sink.
	externalBuffer = 256

	DefaultQueueSize = 64
	DefaultRetention = time.Hour
)

// Outcome is what a finished stage reports back.
type Outcome struct {
	Summary  string
	Artifact string
}

// Func is one stage invocation.
type Func func(ctx context.Context, sink progress.Sink) (Outcome, error)

// Job is a snapshot of a submitted stage.
type Job struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"`
	Status     Status    `json:"status"`
	Percent    float64   `json:"percent"`
	Message    string    `json:"message,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Done reports whether the job has finished.
func (j Job) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

type entry struct {
	job         Job
	done        chan struct{}
	subscribers map[chan progress.Event]struct{}
}

// Runner executes jobs on an ants pool. Each job runs sequentially on one
// worker; the pool bounds how many jobs run at once. Submitted jobs wait in
// a bounded queue that a dispatcher drains into the pool, so Submit never
// blocks. Finished jobs are forgotten once the retention period has passed.
type Runner struct {
	pool      *ants.Pool
	ctx       context.Context
	cancel    context.CancelFunc
	sinks     func(jobID, stage string) progress.Sink
	metrics   *metrics.Registry
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration
	queueSize int

	queue      chan task
	dispatched chan struct{}

	mu     sync.Mutex
	jobs   map[string]*entry
	closed bool
	wg     sync.WaitGroup
}

type task struct {
	e  *entry
	fn Func
}

type Option func(*Runner) error

// WithWorkers sets how many jobs may run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(n int) Option {
	return func(r *Runner) error {
		if n < 1 {
			n = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(n, ants.WithNonblocking(false))
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithSinkFactory adds a sink built per job, e.g. a Kafka publisher.
func WithSinkFactory(fn func(jobID, stage string) progress.Sink) Option {
	return func(r *Runner) error {
		r.sinks = fn
		return nil
	}
}

// WithQueueSize sets how many jobs may wait for a free worker before Submit
// reports ErrQueueFull. Default is DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(r *Runner) error {
		if n < 1 {
			n = 1
		}
		r.queueSize = n
		return nil
	}
}

// WithRetention sets how long finished jobs stay visible.
// Default is DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(r *Runner) error {
		if d > 0 {
			r.retention = d
		}
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) error {
		r.metrics = m
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*entry),
		logger:     slog.Default(),
		now:        time.Now,
		retention:  DefaultRetention,
		queueSize:  DefaultQueueSize,
		dispatched: make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	if r.pool == nil {
		if err := WithWorkers(runtime.NumCPU() / 2)(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "jobs")
	r.queue = make(chan task, r.queueSize)
	go r.dispatch()
	return r, nil
}

// dispatch hands queued jobs to the pool in submission order, waiting for a
// free worker as needed.
func (r *Runner) dispatch() {
	defer close(r.dispatched)
	for t := range r.queue {
		err := r.pool.Submit(func() {
			defer r.wg.Done()
			r.run(t.e, t.fn)
		})
		if err != nil {
			r.wg.Done()
			r.finish(t.e, Outcome{}, fmt.Errorf("starting job: %w", err))
		}
	}
}

// Submit queues fn and returns the new job's snapshot. It does not wait
// for a free worker; when the queue is full it returns ErrQueueFull.
func (r *Runner) Submit(stage string, fn Func) (Job, error) {
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			Stage:     stage,
			Status:    StatusQueued,
			CreatedAt: r.now().UTC(),
		},
		done:        make(chan struct{}),
		subscribers: make(map[chan progress.Event]struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Job{}, ErrClosed
	}
	r.prune()

	r.wg.Add(1)
	select {
	case r.queue <- task{e: e, fn: fn}:
	default:
		r.wg.Done()
		return Job{}, fmt.Errorf("submitting %s job: %w", stage, ErrQueueFull)
	}
	r.jobs[e.job.ID] = e
	r.logger.Info("job queued", "id", e.job.ID, "stage", stage)
	return e.job, nil
}

// prune drops finished jobs older than the retention period.
// The caller holds r.mu.
func (r *Runner) prune() {
	cutoff := r.now().UTC().Add(-r.retention)
	for id, e := range r.jobs {
		if e.job.Done() && e.job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

func (r *Runner) run(e *entry, fn Func) {
	r.metrics.JobStarted()
	defer r.metrics.JobFinished()

	r.mu.Lock()
	e.job.Status = StatusRunning
	e.job.StartedAt = r.now().UTC()
	id, stage := e.job.ID, e.job.Stage
	r.mu.Unlock()

	sink := progress.Sink(progress.Func(func(percent float64, message string) {
		r.report(e, percent, message)
	}))
	if r.sinks != nil {
		if external := r.sinks(id, stage); external != nil {
			async := progress.NewAsync(external, externalBuffer)
			defer func() {
				async.Close()
				if n := async.Dropped(); n > 0 {
					r.logger.Warn("dropped progress reports", "id", id, "count", n)
				}
			}()
			sink = progress.Multi(sink, async)
		}
	}

	outcome, err := r.call(fn, sink)
	r.finish(e, outcome, err)
}

func (r *Runner) finish(e *entry, outcome Outcome, err error) {
	r.mu.Lock()
	e.job.FinishedAt = r.now().UTC()
	e.job.Summary = outcome.Summary
	e.job.Artifact = outcome.Artifact
	if err != nil {
		e.job.Status = StatusFailed
		e.job.Error = err.Error()
	} else {
		e.job.Status = StatusSucceeded
	}
	for ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
	close(e.done)
	id, stage := e.job.ID, e.job.Stage
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("job failed", "id", id, "stage", stage, "err", err)
	} else {
		r.logger.Info("job finished", "id", id, "stage", stage, "summary", outcome.Summary)
	}
}

// call runs fn, turning a panic into a job failure.
func (r *Runner) call(fn Func, sink progress.Sink) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(r.ctx, sink)
}

func (r *Runner) report(e *entry, percent float64, message string) {
	ev := progress.Event{Percent: progress.Clamp(percent), Message: message, Time: r.now()}

	r.mu.Lock()
	defer r.mu.Unlock()
	e.job.Percent = ev.Percent
	e.job.Message = message
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}

// Get returns the current snapshot of a job.
func (r *Runner) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return e.job, nil
}

// List returns all retained jobs, oldest first.
func (r *Runner) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	out := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.job)
	}
	sortJobs(out)
	return out
}

// Subscribe streams progress events of a job until it finishes, at which
// point the channel is closed. Subscribing to a finished job yields a
// closed channel. Call cancel to stop early.
func (r *Runner) Subscribe(id string) (events <-chan progress.Event, cancel func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	ch := make(chan progress.Event, 64)
	if e.subscribers == nil {
		close(ch)
		return ch, func() {}, nil
	}
	e.subscribers[ch] = struct{}{}
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
	}, nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	select {
	case <-e.done:
		return r.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Release stops accepting jobs, waits for queued and running ones and
// frees the pool.
func (r *Runner) Release() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	if r.queue != nil {
		<-r.dispatched
	}
	r.wg.Wait()
	if r.pool != nil {
		r.pool.Release()
	}
	r.cancel()
}
