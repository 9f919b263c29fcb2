// Package workflow runs a unit of work against a content repository and
// publishes the working tree only when the work changed it.
//
// Every run follows the same sequence: make sure the repository is cloned,
// reset it to its upstream branch, run the task, then commit and push if
// the tree became dirty. Any failure after the reset puts the tree back to
// its upstream state before the error is returned, so no run leaves
// uncommitted changes behind.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justinsantoro/warframesync/workspace"
)

const (
	DefaultResetAttempts = 3
	DefaultResetBackoff  = 2 * time.Second
)

//ErrRunInProgress is returned by Run when another run holds the same
//repository directory
var ErrRunInProgress = errors.New("workflow: run already in progress for repository")

//Backend is the version control surface a Workflow drives
type Backend interface {
	EnsureCloned(ctx context.Context, d workspace.Descriptor) (bool, error)
	ResetToUpstream(ctx context.Context, d workspace.Descriptor) error
	HasUncommittedChanges(ctx context.Context, d workspace.Descriptor) (bool, error)
	//CommitAndPush returns the pushed commit. A zero hash with a nil error
	//means the changes were dropped without committing.
	CommitAndPush(ctx context.Context, d workspace.Descriptor) (plumbing.Hash, error)
}

//Task is the unit of work run against a clean working tree. It may only
//touch the tree through files; it never talks to git.
type Task func(ctx context.Context, ec workspace.ExecutionContext) error

//TaskError wraps the error returned by a Task
type TaskError struct {
	Err error
}

func (e *TaskError) Error() string { return "task: " + e.Err.Error() }
func (e *TaskError) Unwrap() error { return e.Err }

//ResetError is joined to the original failure when the tree could not be
//reset after it. The working tree is then in an unknown state.
type ResetError struct {
	Attempts int
	Err      error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset after failure gave up after %d attempts: %v", e.Attempts, e.Err)
}
func (e *ResetError) Unwrap() error { return e.Err }

type Options struct {
	//ResetAttempts bounds the resets tried after a failed run
	ResetAttempts int
	ResetBackoff  time.Duration
	Metrics       *Metrics
}

type Workflow struct {
	backend Backend
	opts    Options
	log     *zap.SugaredLogger

	mu      sync.Mutex
	running map[string]bool
}

//New returns a Workflow driving backend
func New(backend Backend, opts Options, log *zap.SugaredLogger) *Workflow {
	if opts.ResetAttempts <= 0 {
		opts.ResetAttempts = DefaultResetAttempts
	}
	if opts.ResetBackoff < 0 {
		opts.ResetBackoff = 0
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Workflow{backend: backend, opts: opts, log: log, running: map[string]bool{}}
}

func (w *Workflow) acquire(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[key] {
		return false
	}
	w.running[key] = true
	return true
}

func (w *Workflow) release(key string) {
	w.mu.Lock()
	delete(w.running, key)
	w.mu.Unlock()
}

//Run brings d to its upstream state, runs task and publishes the result.
//It reports whether a commit was pushed. A failing task's error is returned
//wrapped in a *TaskError after the tree has been reset.
func (w *Workflow) Run(ctx context.Context, d workspace.Descriptor, task Task) (bool, error) {
	if !w.acquire(d.Directory) {
		w.opts.Metrics.observe(d, resultSkipped, 0)
		return false, ErrRunInProgress
	}
	defer w.release(d.Directory)

	log := w.log.With("run", uuid.NewString(), "repository", d.Directory, "branch", d.Branch)
	start := time.Now()
	state := Uninitialized
	to := func(next State) {
		log.Debugw("state changed", "from", state, "to", next)
		state = next
	}
	defer func() {
		w.opts.Metrics.observe(d, state.result(), time.Since(start))
		log.Debugw("run finished", "state", state, "duration", time.Since(start))
	}()

	cloned, err := w.backend.EnsureCloned(ctx, d)
	if err != nil {
		to(Failed)
		return false, err
	}
	to(Cloned)
	if cloned {
		log.Infow("repository cloned", "url", d.URL)
	}

	if err := w.backend.ResetToUpstream(ctx, d); err != nil {
		to(Failed)
		return false, err
	}
	to(Clean)
	to(RunningTask)
	if err := task(ctx, workspace.ExecutionContext{Repository: d}); err != nil {
		to(Failed)
		log.Errorw("execution of task failed", "error", err)
		return false, w.rollback(ctx, d, log, &TaskError{Err: err})
	}

	dirty, err := w.backend.HasUncommittedChanges(ctx, d)
	if err != nil {
		to(Failed)
		return false, w.rollback(ctx, d, log, err)
	}
	if !dirty {
		to(Clean)
		log.Debugw("repository unchanged")
		return false, nil
	}
	to(Dirty)

	hash, err := w.backend.CommitAndPush(ctx, d)
	if err != nil {
		to(Failed)
		return false, w.rollback(ctx, d, log, err)
	}
	if hash.IsZero() {
		to(Discarded)
		log.Infow("changes discarded without a commit")
		return false, nil
	}
	to(Published)
	log.Infow("repository state was updated", "url", d.URL, "commit", hash.String())
	return true, nil
}

//rollback resets d after cause, retrying with a fixed backoff. It returns
//cause, joined with a *ResetError when every attempt failed.
func (w *Workflow) rollback(ctx context.Context, d workspace.Descriptor, log *zap.SugaredLogger, cause error) error {
	//the cleanup must outlive a cancelled run
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= w.opts.ResetAttempts; attempt++ {
		if err = w.backend.ResetToUpstream(ctx, d); err == nil {
			return cause
		}
		log.Warnw("reset after failure failed", "attempt", attempt, "error", err)
		if attempt < w.opts.ResetAttempts {
			time.Sleep(w.opts.ResetBackoff)
		}
	}
	log.Errorw("working tree could not be reset", "attempts", w.opts.ResetAttempts, "error", err)
	return errors.Join(cause, &ResetError{Attempts: w.opts.ResetAttempts, Err: err})
}
