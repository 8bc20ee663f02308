/*
Package archforest converts decision tree ensembles into source code
laid out for the instruction cache of a target architecture.

Every tree becomes a prediction function. The nodes most likely to be
reached are laid out inline at the start of the function, within a
code size budget estimated with a per-architecture cost model, and the
rest is moved into labeled blocks reached through explicit jumps.
*/
package archforest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/queue"
	"github.com/AfafAlalwan/arch-forest/tree"
)

// Target renders tree layouts as source code
type Target interface {
	// Unit takes the layout of a tree and returns the declaration
	// and definition of its prediction function
	Unit(b *codegen.Body) (codegen.Unit, error)
	// Files takes the units of the trees of a forest, in forest order,
	// and the number of classes and returns the files of the forest
	Files(units []codegen.Unit, numClasses int) ([]codegen.File, error)
}

// Logger is the interface for the log output of a conversion
type Logger interface {
	Logf(format string, a ...interface{})
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...interface{}) {}

// Result holds the output of a forest conversion
type Result struct {
	// Units holds one unit per converted tree, in forest order
	Units []codegen.Unit
	// Files are the assembled files of the converted trees
	Files []codegen.File
	// Stats is the sum of the layout statistics of the converted trees
	Stats codegen.Stats
	// Failed holds the trees that could not be converted, only filled
	// when converting with ContinueOnError
	Failed []*TreeError
}

type convertConfig struct {
	workers         int
	logger          Logger
	continueOnError bool
	queue           queue.Queue
	layouts         LayoutStore
	emptyQueueSleep time.Duration
}

// ConvertOption sets up a forest conversion
type ConvertOption func(*convertConfig) error

// Workers sets the number of trees converted concurrently, the
// number of CPUs by default. Output does not depend on it.
func Workers(n int) ConvertOption {
	return func(c *convertConfig) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "must be positive", nil)
		}
		c.workers = n
		return nil
	}
}

// WithLogger sets the logger for the conversion
func WithLogger(l Logger) ConvertOption {
	return func(c *convertConfig) error {
		if l == nil {
			l = nopLogger{}
		}
		c.logger = l
		return nil
	}
}

// WithQueue sets the queue the tasks of the conversion are pushed to,
// a new in-memory queue by default. The queue is stopped when the
// conversion ends.
func WithQueue(q queue.Queue) ConvertOption {
	return func(c *convertConfig) error {
		if q == nil {
			return NewConfigError("Queue", nil, "queue cannot be nil", nil)
		}
		c.queue = q
		return nil
	}
}

// ContinueOnError makes the conversion go on when a tree fails,
// reporting it in Result.Failed and leaving it out of the files.
func ContinueOnError() ConvertOption {
	return func(c *convertConfig) error {
		c.continueOnError = true
		return nil
	}
}

// ConvertTree takes a tree, its index in the forest, a converter
// and a target and returns the unit for the tree.
func ConvertTree(t *tree.Tree, id int, c Converter, target Target) (codegen.Unit, error) {
	b, err := c.Emit(t, id)
	if err != nil {
		return codegen.Unit{}, &TreeError{Tree: id, Err: err}
	}
	u, err := target.Unit(b)
	if err != nil {
		return codegen.Unit{}, &TreeError{Tree: id, Err: err}
	}
	return u, nil
}

/*
Convert takes a context, a forest, a converter, a target and options and
returns the result of converting every tree of the forest.

Trees are pushed as tasks to a queue and converted by concurrent
workers. Each result is kept at the index of its tree, so the output is
the same whatever the number of workers.

With WithQueue and WithLayoutStore, workers of other processes can
take part through Drain: the trees they lay out are taken from the
layout store once the queue is empty.

Unless ContinueOnError is given, the first tree that fails aborts the
conversion with a *TreeError. It also returns an error if the context
expires or the target cannot assemble the files.
*/
func Convert(ctx context.Context, f *tree.Forest, c Converter, target Target, opts ...ConvertOption) (*Result, error) {
	cfg := &convertConfig{
		workers:         runtime.NumCPU(),
		logger:          nopLogger{},
		emptyQueueSleep: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if f == nil || len(f.Trees) == 0 {
		return nil, fmt.Errorf("converting forest: %w", tree.ErrInvalidForest)
	}
	q := cfg.queue
	if q == nil {
		q = queue.New()
	}
	defer q.Stop(context.Background())

	for i, t := range f.Trees {
		if err := q.Push(ctx, &queue.Task{Index: i, Tree: t}); err != nil {
			return nil, fmt.Errorf("queueing tree %d: %w", i, err)
		}
	}

	units := make([]*codegen.Unit, len(f.Trees))
	failures := make([]*TreeError, len(f.Trees))
	process := func(ctx context.Context, task *queue.Task) error {
		if task.Index < 0 || task.Index >= len(units) {
			return fmt.Errorf("task for unknown tree %d", task.Index)
		}
		u, err := ConvertTree(task.Tree, task.Index, c, target)
		if err != nil {
			var te *TreeError
			errors.As(err, &te)
			if !cfg.continueOnError {
				return te
			}
			failures[task.Index] = te
			return nil
		}
		if cfg.layouts != nil {
			if err = cfg.layouts.PutLayout(ctx, u.Body); err != nil {
				return fmt.Errorf("storing layout of tree %d: %w", task.Index, err)
			}
		}
		units[task.Index] = &u
		return nil
	}

	workers := cfg.workers
	if workers > len(f.Trees) {
		workers = len(f.Trees)
	}
	eg, ectx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			return Work(ectx, q, process, cfg.emptyQueueSleep)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if cfg.layouts != nil {
		if err := storedUnits(ctx, cfg.layouts, target, units, failures); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	for i := range f.Trees {
		if failures[i] != nil {
			cfg.logger.Logf("tree %d: %v", i, failures[i].Err)
			result.Failed = append(result.Failed, failures[i])
			continue
		}
		u := units[i]
		if u == nil {
			return nil, fmt.Errorf("converting forest: tree %d was not converted", i)
		}
		cfg.logger.Logf("tree %d: %v", i, u.Body.Stats)
		result.Units = append(result.Units, *u)
		result.Stats = result.Stats.Add(u.Body.Stats)
	}
	if len(result.Units) == 0 {
		return result, fmt.Errorf("converting forest: all %d trees failed", len(f.Trees))
	}
	files, err := target.Files(result.Units, f.NumClasses)
	if err != nil {
		return nil, fmt.Errorf("assembling files: %w", err)
	}
	result.Files = files
	cfg.logger.Logf("%s: %d trees converted, %d failed: %v", c.Name(), len(result.Units), len(result.Failed), result.Stats)
	return result, nil
}

/*
Work takes a context, a queue, a function to process tasks and an
emptyQueueSleep duration and enters a loop in which it:
  - pulls a task from the queue
  - processes it with the given function
  - marks the task as completed on the queue, or drops it if
    processing failed

If no task can be pulled and the queue has no pending nor running
tasks, the worker ends returning nil. If no task can be pulled but
some are still running, it sleeps for emptyQueueSleep and retries, as
a running task may be dropped back into the queue.

Work returns a non-nil error if the context expires, processing a task
fails or a queue operation fails.
*/
func Work(ctx context.Context, q queue.Queue, process func(context.Context, *queue.Task) error, emptyQueueSleep time.Duration) error {
	for {
		task, tctx, err := q.Pull(ctx)
		if err != nil {
			return err
		}
		if task == nil {
			p, r, err := q.Count(ctx)
			if err != nil {
				return err
			}
			if p+r == 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(emptyQueueSleep):
			}
			continue
		}
		if tctx == nil {
			tctx = ctx
		}
		mctx, cancel := mergeCtxCancel(tctx, ctx)
		err = process(mctx, task)
		cancel()
		if err != nil {
			q.Drop(ctx, task.ID())
			return err
		}
		if err = q.Complete(ctx, task.ID()); err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
	}
}

func mergeCtxCancel(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	mctx, cancel := context.WithCancel(ctx1)
	go func() {
		select {
		case <-mctx.Done():
		case <-ctx2.Done():
			cancel()
		}
	}()
	return mctx, cancel
}
