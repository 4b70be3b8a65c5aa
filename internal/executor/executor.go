// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/discovery"
	"github.com/mf-maestro/maestro/internal/issue"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"
)

const (
	// StatusSkipped means the operation never started.
	StatusSkipped Status = iota
	// StatusSucceeded means the operation returned nil.
	StatusSucceeded
	// StatusFailed means the operation returned an error.
	StatusFailed
)

var (
	// ErrTaskFailed is the sentinel wrapped by TaskError.
	ErrTaskFailed = errors.New("component operation failed")
	// ErrPostProcessFailed is the sentinel wrapped by PostProcessError.
	ErrPostProcessFailed = errors.New("post-process failed")
)

type (
	// Status is the outcome of one task.
	Status int

	// Task is the input of one operation.
	Task struct {
		Component      discovery.Component
		Entity         config.Entity
		ComponentsRoot string
	}

	// Operation does the per-component work. The returned payload is
	// optional; operations that run no command return nil.
	Operation func(ctx context.Context, t Task) (*shell.Result, error)

	// PostProcessFunc runs once per entity after all its tasks succeeded.
	// results holds one entry per component in discovery order.
	PostProcessFunc func(ctx context.Context, entity config.Entity, results []TaskResult, componentsRoot string) error

	// TaskResult is the outcome of one component.
	TaskResult struct {
		Name     string
		Entity   string
		FullPath string
		Payload  *shell.Result
		Status   Status
		Err      error
		Elapsed  time.Duration
	}

	// EntityRun is the outcome of one entity.
	EntityRun struct {
		Entity      config.Entity
		Results     []TaskResult
		Diagnostics []discovery.Diagnostic
		Err         error
		Elapsed     time.Duration
	}

	// Options tune a Run.
	Options struct {
		// Name of the operation, used in logs and errors ("build").
		Name string
		// ComponentsRoot is the directory holding one subdirectory per entity.
		ComponentsRoot string
		// Component restricts discovery to one requested component.
		Component string
		// Concurrency bounds in-flight operations per entity. Values below 1
		// mean config.DefaultConcurrency.
		Concurrency int
		// Sequential forces Concurrency to 1.
		Sequential bool
		// FailurePolicy defaults to config.FailureStopScheduling.
		FailurePolicy config.FailurePolicy
		PostProcess   PostProcessFunc
	}

	// Executor runs operations over discovered components.
	Executor struct {
		fs     billy.Filesystem
		logger *slog.Logger
	}

	// Option configures an Executor.
	Option func(*Executor)

	// TaskError reports a failed component operation.
	TaskError struct {
		Component string
		Entity    string
		Err       error
	}

	// PostProcessError reports a failed post-process hook.
	PostProcessError struct {
		Entity string
		Err    error
	}
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("component %s of entity %s: %v", e.Component, e.Entity, e.Err)
}

func (e *TaskError) Unwrap() []error { return []error{ErrTaskFailed, e.Err} }

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("post-process of entity %s: %v", e.Entity, e.Err)
}

func (e *PostProcessError) Unwrap() []error { return []error{ErrPostProcessFailed, e.Err} }

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an Executor discovering components on fs.
func New(fs billy.Filesystem, opts ...Option) *Executor {
	e := &Executor{fs: fs, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limit is the effective number of in-flight operations per entity.
func (o Options) Limit() int {
	if o.Sequential {
		return 1
	}
	if o.Concurrency < 1 {
		return config.DefaultConcurrency()
	}
	return o.Concurrency
}

// Run processes every entity concurrently and returns one EntityRun per
// entity in input order. The error joins every failure; it is nil only
// when all entities succeeded.
func (e *Executor) Run(ctx context.Context, entities []config.Entity, op Operation, opts Options) ([]EntityRun, error) {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailureStopScheduling
	}
	if ok, errs := opts.FailurePolicy.IsValid(); !ok {
		return nil, errors.Join(errs...)
	}

	runs := make([]EntityRun, len(entities))
	var wg sync.WaitGroup
	for i, entity := range entities {
		wg.Go(func() {
			runs[i] = e.runEntity(ctx, entity, op, opts)
		})
	}
	wg.Wait()

	var errs []error
	for _, r := range runs {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 {
		return runs, nil
	}
	return runs, issue.NewErrorContext().
		WithOperation(fmt.Sprintf("run %s", opts.nameOr("operation"))).
		WithResource(fmt.Sprintf("%d of %d entities failed", len(errs), len(entities))).
		WithSuggestion("Re-run a single component with --component <name> --verbose").
		WithIssue(issue.ComponentFailedId).
		Wrap(errors.Join(errs...)).
		Err()
}

func (e *Executor) runEntity(ctx context.Context, entity config.Entity, op Operation, opts Options) EntityRun {
	start := time.Now()
	run := EntityRun{Entity: entity}
	log := e.logger.With("entity", entity.Name)

	found, err := discovery.Discover(e.fs, entity.Name, opts.ComponentsRoot, opts.Component)
	if err != nil {
		log.Error("discovery failed", "error", err)
		run.Err = err
		run.Elapsed = time.Since(start)
		return run
	}
	run.Diagnostics = found.Diagnostics
	for _, d := range found.Diagnostics {
		log.Debug(d.Message, "code", d.Code, "path", d.Path)
	}

	comps := found.Components
	run.Results = make([]TaskResult, len(comps))
	for i, c := range comps {
		run.Results[i] = TaskResult{Name: c.Name, Entity: c.Entity, FullPath: c.FullPath}
	}
	if len(comps) == 0 {
		log.Warn("no components found", "root", opts.ComponentsRoot, "component", opts.Component)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Limit())

	var stopped atomic.Bool
	for i, c := range comps {
		if stopped.Load() || ctx.Err() != nil {
			break
		}
		task := Task{Component: c, Entity: entity, ComponentsRoot: opts.ComponentsRoot}
		g.Go(func() error {
			if stopped.Load() || ctx.Err() != nil {
				return nil
			}
			opCtx := ctx
			if opts.FailurePolicy == config.FailureCancelInFlight {
				opCtx = gctx
			}

			log.Debug("starting", "component", c.Name, "operation", opts.Name)
			t0 := time.Now()
			payload, err := op(opCtx, task)

			res := &run.Results[i]
			res.Payload = payload
			res.Elapsed = time.Since(t0)
			if err == nil {
				res.Status = StatusSucceeded
				log.Debug("done", "component", c.Name, "elapsed", res.Elapsed)
				return nil
			}

			res.Status = StatusFailed
			res.Err = &TaskError{Component: c.Name, Entity: entity.Name, Err: err}
			log.Error("component failed", "component", c.Name, "operation", opts.Name, "error", err)

			switch opts.FailurePolicy {
			case config.FailureContinue:
				return nil
			case config.FailureCancelInFlight:
				stopped.Store(true)
				return res.Err
			default:
				stopped.Store(true)
				return nil
			}
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range run.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 && ctx.Err() != nil {
		errs = append(errs, fmt.Errorf("entity %s: %w", entity.Name, ctx.Err()))
	}

	if len(errs) == 0 && opts.PostProcess != nil {
		if err := opts.PostProcess(ctx, entity, run.Results, opts.ComponentsRoot); err != nil {
			log.Error("post-process failed", "error", err)
			errs = append(errs, &PostProcessError{Entity: entity.Name, Err: err})
		}
	}

	run.Err = errors.Join(errs...)
	run.Elapsed = time.Since(start)
	return run
}

func (o Options) nameOr(def string) string {
	if o.Name == "" {
		return def
	}
	return o.Name
}

// Counts tallies the statuses of an entity's tasks.
func (r EntityRun) Counts() (succeeded, failed, skipped int) {
	for _, t := range r.Results {
		switch t.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		default:
			skipped++
		}
	}
	return succeeded, failed, skipped
}
