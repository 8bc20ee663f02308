package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Queue holds the tasks of a conversion. A worker
// pulls a task, processes it and then either completes
// it or drops it so another worker can take it.
//
// All its methods have a context.Context as first
// parameter that implementations may use to allow
// timeouts and cancellations on the Queue operations.
type Queue interface {
	// Push takes a task and stores it in the queue as
	// pending, or returns an error.
	Push(context.Context, *Task) error
	// Pull returns a pending task and a context that is
	// cancelled when the queue is stopped, or an error.
	// The task counts as running from then on. If there
	// are no pending tasks it returns 3 nil values.
	Pull(context.Context) (*Task, context.Context, error)
	// Drop takes the ID of a running task and makes it
	// pending again. Dropping a task that is not running
	// is not an error.
	Drop(context.Context, string) error
	// Complete takes the ID of a running task and
	// removes it from the queue.
	Complete(context.Context, string) error
	// Count returns the number of pending and
	// running tasks in the queue, or an error.
	Count(context.Context) (int, int, error)
	// Stop stops the queue, cancelling the contexts
	// of pulled tasks.
	Stop(context.Context) error
}

type memQueue struct {
	pending []*Task
	running map[string]*Task
	lock    *sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a queue backed only by the process memory
func New() Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &memQueue{
		running: make(map[string]*Task),
		lock:    &sync.Mutex{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// WaitFor takes a context and a queue and waits until the
// queue has no pending nor running tasks, checking it every
// given interval. It returns an error if the context expires
// or the queue's Count fails.
func WaitFor(ctx context.Context, q Queue, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pending, running, err := q.Count(ctx)
		if err != nil {
			return err
		}
		if pending+running == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (mq *memQueue) Push(ctx context.Context, t *Task) error {
	return mq.withLock(ctx, func() error {
		mq.pending = append(mq.pending, t)
		return nil
	})
}

func (mq *memQueue) Pull(ctx context.Context) (*Task, context.Context, error) {
	var task *Task
	err := mq.withLock(ctx, func() error {
		if len(mq.pending) == 0 {
			return nil
		}
		task = mq.pending[0]
		mq.pending[0] = nil
		mq.pending = mq.pending[1:]
		mq.running[task.ID()] = task
		return nil
	})
	if err != nil || task == nil {
		return nil, nil, err
	}
	return task, mq.ctx, nil
}

func (mq *memQueue) Drop(ctx context.Context, id string) error {
	return mq.withLock(ctx, func() error {
		t, ok := mq.running[id]
		if !ok {
			return nil
		}
		delete(mq.running, id)
		mq.pending = append(mq.pending, t)
		return nil
	})
}

func (mq *memQueue) Complete(ctx context.Context, id string) error {
	return mq.withLock(ctx, func() error {
		delete(mq.running, id)
		return nil
	})
}

func (mq *memQueue) Count(ctx context.Context) (int, int, error) {
	var pending, running int
	err := mq.withLock(ctx, func() error {
		pending, running = len(mq.pending), len(mq.running)
		return nil
	})
	return pending, running, err
}

func (mq *memQueue) Stop(ctx context.Context) error {
	mq.cancel()
	return nil
}

func (mq *memQueue) String() string {
	return fmt.Sprintf("{Queue pending: %d running: %d}", len(mq.pending), len(mq.running))
}

func (mq *memQueue) withLock(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gotLock := make(chan struct{})
	go func() {
		mq.lock.Lock()
		select {
		case <-ctx.Done():
			mq.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mq.lock.Unlock()
	}
	return f()
}
