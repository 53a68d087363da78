// Package purge runs the deferred second phase of asset deletion: removing
// blobs from the object store and hard-deleting the corresponding records.
// Work is queued by the user-facing delete paths and drained by background
// workers, so a slow or failing blob delete never blocks a caller.
package purge

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"framevault/internal/logging"
	"framevault/internal/server/blob"
	"framevault/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// Task is one unit of deferred cleanup. AssetID/StorageKey purge a single
// asset; a non-empty WorkspaceID purges the workspace record (queued last
// during teardown). Tasks are idempotent: re-running one against already
// purged state is a no-op.
type Task struct {
	AssetID     string
	StorageKey  string
	WorkspaceID string
}

// Purger owns the queue and the worker pool.
type Purger struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blob.Store
	logger logging.Logger

	tasks    chan Task
	wg       sync.WaitGroup
	workers  int
	attempts uint64
	backoff  time.Duration
	timeout  time.Duration
}

// Options tunes the worker pool. Zero values fall back to defaults.
type Options struct {
	Workers      int
	QueueDepth   int
	BlobAttempts uint64
	TaskTimeout  time.Duration
}

// New builds a Purger; call Start to begin draining the queue.
func New(db *sql.DB, repos repomanager.RepositoryManager, blobs blob.Store, logger logging.Logger, opts Options) *Purger {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 256
	}
	if opts.BlobAttempts == 0 {
		opts.BlobAttempts = 3
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = time.Minute
	}
	return &Purger{
		db:       db,
		repos:    repos,
		blobs:    blobs,
		logger:   logger.With("module", "purge"),
		tasks:    make(chan Task, opts.QueueDepth),
		workers:  opts.Workers,
		attempts: opts.BlobAttempts,
		backoff:  500 * time.Millisecond,
		timeout:  opts.TaskTimeout,
	}
}

// Start launches the worker pool.
func (p *Purger) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Enqueue schedules a task. It blocks when the queue is full rather than
// dropping cleanup work. Once scheduled a task is not cancellable.
func (p *Purger) Enqueue(task Task) {
	p.tasks <- task
}

// Close stops accepting tasks, drains the queue, and waits for the
// workers to finish.
func (p *Purger) Close() {
	close(p.tasks)
	p.wg.Wait()
}

func (p *Purger) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.process(task)
	}
}

// process never returns an error: phase-2 failures are logged, and the
// record purge proceeds regardless of blob-delete success. Leaking an
// orphaned blob is preferred over leaking a record row; the orphan is the
// reconciliation sweep's problem.
func (p *Purger) process(task Task) {
	// Request contexts are long gone; deferred work gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if task.StorageKey != "" {
		if err := p.deleteBlob(ctx, task.StorageKey); err != nil {
			p.logger.Warn(ctx, "blob delete failed, leaving orphan",
				"storage_key", task.StorageKey, "asset_id", task.AssetID, "error", err)
		}
	}

	if task.AssetID != "" {
		if err := p.repos.Assets(p.db).HardDelete(ctx, task.AssetID); err != nil {
			p.logger.Error(ctx, "asset record purge failed", "asset_id", task.AssetID, "error", err)
		} else {
			p.logger.Debug(ctx, "asset purged", "asset_id", task.AssetID)
		}
	}

	if task.WorkspaceID != "" {
		if err := p.repos.Workspaces(p.db).Delete(ctx, task.WorkspaceID); err != nil {
			p.logger.Error(ctx, "workspace record purge failed", "workspace_id", task.WorkspaceID, "error", err)
		} else {
			p.logger.Debug(ctx, "workspace purged", "workspace_id", task.WorkspaceID)
		}
	}
}

func (p *Purger) deleteBlob(ctx context.Context, key string) error {
	backoff := retry.WithMaxRetries(p.attempts, retry.NewExponential(p.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.blobs.Delete(ctx, key); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
