package archforest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/queue"
)

/*
LayoutStore keeps the layouts of the trees of a conversion so that
trees laid out by workers of other processes reach the process that
assembles the files.
*/
type LayoutStore interface {
	// PutLayout stores the layout of a tree under its tree index
	PutLayout(ctx context.Context, b *codegen.Body) error
	// Layout returns the layout stored for the tree with the given
	// index, or nil and no error if there is none.
	Layout(ctx context.Context, tree int) (*codegen.Body, error)
}

type memoryLayoutStore struct {
	layouts map[int]*codegen.Body
	lock    sync.RWMutex
}

// NewMemoryLayoutStore returns a LayoutStore backed by the process memory
func NewMemoryLayoutStore() LayoutStore {
	return &memoryLayoutStore{layouts: make(map[int]*codegen.Body)}
}

func (mls *memoryLayoutStore) PutLayout(ctx context.Context, b *codegen.Body) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mls.lock.Lock()
	defer mls.lock.Unlock()
	mls.layouts[b.Tree] = b
	return nil
}

func (mls *memoryLayoutStore) Layout(ctx context.Context, tree int) (*codegen.Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mls.lock.RLock()
	defer mls.lock.RUnlock()
	return mls.layouts[tree], nil
}

// WithLayoutStore sets a store the layouts of the conversion are
// put on, and taken from for the trees this process did not lay out.
func WithLayoutStore(ls LayoutStore) ConvertOption {
	return func(c *convertConfig) error {
		if ls == nil {
			return NewConfigError("LayoutStore", nil, "layout store cannot be nil", nil)
		}
		c.layouts = ls
		return nil
	}
}

/*
Drain takes a context, a queue shared with a conversion running on
another process, a converter and a layout store and lays out the trees
of the tasks on the queue, putting every layout on the store, until the
queue has no pending nor running tasks. Only the Workers and WithLogger
options apply.

The converter must be set up like the one of the conversion, as the
assembling process renders the stored layouts as they are. A tree that
fails is dropped back into the queue and ends the drain with a
*TreeError, so the assembling process can report it.
*/
func Drain(ctx context.Context, q queue.Queue, c Converter, ls LayoutStore, opts ...ConvertOption) error {
	cfg := &convertConfig{
		workers:         runtime.NumCPU(),
		logger:          nopLogger{},
		emptyQueueSleep: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return err
		}
	}
	if q == nil || ls == nil {
		return NewConfigError("Queue", nil, "drain needs a queue and a layout store", nil)
	}
	process := func(ctx context.Context, task *queue.Task) error {
		b, err := c.Emit(task.Tree, task.Index)
		if err != nil {
			return &TreeError{Tree: task.Index, Err: err}
		}
		if err = ls.PutLayout(ctx, b); err != nil {
			return fmt.Errorf("storing layout of tree %d: %w", task.Index, err)
		}
		cfg.logger.Logf("tree %d: %v", task.Index, b.Stats)
		return nil
	}
	eg, ectx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.workers; w++ {
		eg.Go(func() error {
			return Work(ectx, q, process, cfg.emptyQueueSleep)
		})
	}
	return eg.Wait()
}

// storedUnits renders the stored layouts of the trees with no unit
// nor failure
func storedUnits(ctx context.Context, ls LayoutStore, target Target, units []*codegen.Unit, failures []*TreeError) error {
	for i, u := range units {
		if u != nil || failures[i] != nil {
			continue
		}
		b, err := ls.Layout(ctx, i)
		if err != nil {
			return fmt.Errorf("reading layout of tree %d: %w", i, err)
		}
		if b == nil {
			continue
		}
		if b.Tree != i {
			return fmt.Errorf("reading layout of tree %d: %w", i, errors.New("stored for another tree"))
		}
		stored, err := target.Unit(b)
		if err != nil {
			return &TreeError{Tree: i, Err: err}
		}
		units[i] = &stored
	}
	return nil
}
