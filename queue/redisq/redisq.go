/*
Package redisq implements a queue.Queue on a redis server, so that the
tasks of a conversion outlive the process that pushed them and workers
that die while holding a task give it back to the queue.
*/
package redisq

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	redis "gopkg.in/redis.v5"

	"github.com/AfafAlalwan/arch-forest/queue"
)

/*
EncodeDecoder is an interface for objects
that allow encoding tasks as slices of bytes and decoding
them back to tasks. It is used to serialize tasks into a
representation to store on redis
*/
type EncodeDecoder interface {
	Encode(context.Context, *queue.Task) ([]byte, error)
	Decode(context.Context, []byte) (*queue.Task, error)
}

type redisQ struct {
	id         string
	rc         *redis.Client
	allTaskCtx context.Context
	allTaskCF  context.CancelFunc
	taskMaxRun time.Duration
	lockTTL    time.Duration
	EncodeDecoder
}

const lockReleaseScript = `
if redis.call("GET",KEYS[1]) == ARGV[1] then
    return redis.call("DEL",KEYS[1])
else
    return 0
end
`

const countScript = `return {redis.call("SCARD", KEYS[1]), redis.call("SCARD", KEYS[2])}`

const (
	lockAttempts    = 5
	failToLockSleep = 10 * time.Millisecond
)

/*
New returns a queue.Queue that uses the given redis client as a
backend. It uses the given id to prefix the keys it keeps the
queue's data on, which are the following:
  - id:pending is a set with the ids of the pending tasks
  - id:running is a set with the ids of the running tasks
  - id:task:task_id:data holds the task encoded with the given
    EncodeDecoder
  - id:task:task_id:lock implements a lock for exclusive management of
    a task on the queue. It expires after lockTTL
  - id:task:task_id:running marks a pulled task, and expires after
    taskMaxRun. A task whose mark expired while it is in the running
    set was dropped by a failing worker and is made pending again.
    A zero taskMaxRun disables the expiration.

The returned queue is safe for concurrent use by multiple goroutines.
*/
func New(id string, rc *redis.Client, taskMaxRun, lockTTL time.Duration, encDec EncodeDecoder) queue.Queue {
	ctx, cf := context.WithCancel(context.Background())
	rq := &redisQ{
		id:            id,
		rc:            rc,
		allTaskCtx:    ctx,
		allTaskCF:     cf,
		taskMaxRun:    taskMaxRun,
		lockTTL:       lockTTL,
		EncodeDecoder: encDec,
	}
	if taskMaxRun > 0 {
		go rq.dropTimedOutTasks()
	}
	return rq
}

// Push encodes the task and stores it as pending. It fails if a
// task with the same id is already on the queue.
func (rq *redisQ) Push(ctx context.Context, t *queue.Task) error {
	data, err := rq.Encode(ctx, t)
	if err != nil {
		return fmt.Errorf("pushing task %s to queue: %v", t.ID(), err)
	}
	dataKey := rq.dataKey(t.ID())
	ok, err := rq.rc.SetNX(dataKey, string(data), 0).Result()
	if err != nil {
		return fmt.Errorf("pushing task %s to queue: %v", t.ID(), err)
	}
	if !ok {
		return fmt.Errorf("pushing task %s to queue: key %q already exists", t.ID(), dataKey)
	}
	added, err := rq.rc.SAdd(rq.pendingSetKey(), t.ID()).Result()
	if err != nil || added != 1 {
		rq.rc.Del(dataKey)
		if err == nil {
			err = fmt.Errorf("%q already in pending set %q", t.ID(), rq.pendingSetKey())
		}
		return fmt.Errorf("pushing task %s to queue: %v", t.ID(), err)
	}
	return nil
}

// Pull moves a pending task to the running set and returns it
// decoded. Tasks whose data cannot be read are dropped and the next
// pending one is tried.
func (rq *redisQ) Pull(ctx context.Context) (*queue.Task, context.Context, error) {
	iter := rq.rc.SScan(rq.pendingSetKey(), 0, "", 0).Iterator()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		id := iter.Val()
		err := rq.withLockFor(ctx, id, 0, func(ctx context.Context) error {
			ok, err := rq.rc.SetNX(rq.runningMarkKey(id), "true", rq.taskMaxRun).Result()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s already running", id)
			}
			moved, err := rq.rc.SMove(rq.pendingSetKey(), rq.runningSetKey(), id).Result()
			if err == nil && !moved {
				err = fmt.Errorf("task %s no longer pending", id)
			}
			if err != nil {
				rq.rc.Del(rq.runningMarkKey(id))
				return fmt.Errorf("moving %s from %q to %q: %v", id, rq.pendingSetKey(), rq.runningSetKey(), err)
			}
			return nil
		})
		if err != nil {
			continue
		}
		data, err := rq.rc.Get(rq.dataKey(id)).Result()
		if err != nil {
			rq.Drop(ctx, id)
			continue
		}
		t, err := rq.Decode(ctx, []byte(data))
		if err != nil {
			rq.Drop(ctx, id)
			continue
		}
		return t, rq.allTaskCtx, nil
	}
	if err := iter.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating over pending tasks in %q: %v", rq.pendingSetKey(), err)
	}
	return nil, nil, nil
}

func (rq *redisQ) Drop(ctx context.Context, id string) error {
	err := rq.withLockFor(ctx, id, lockAttempts, func(ctx context.Context) error {
		ok, err := rq.rc.SMove(rq.runningSetKey(), rq.pendingSetKey(), id).Result()
		if err != nil {
			return fmt.Errorf("moving %s from %q to %q: %v", id, rq.runningSetKey(), rq.pendingSetKey(), err)
		}
		if !ok {
			return nil
		}
		return rq.del(rq.runningMarkKey(id))
	})
	if err != nil {
		return fmt.Errorf("dropping task %s: %v", id, err)
	}
	return nil
}

// Complete removes a running task and its data from the queue
func (rq *redisQ) Complete(ctx context.Context, id string) error {
	err := rq.withLockFor(ctx, id, lockAttempts, func(ctx context.Context) error {
		count, err := rq.rc.SRem(rq.runningSetKey(), id).Result()
		if err != nil {
			return fmt.Errorf("removing %s from %q: %v", id, rq.runningSetKey(), err)
		}
		if count == 0 {
			return nil
		}
		return rq.del(rq.runningMarkKey(id), rq.dataKey(id))
	})
	if err != nil {
		return fmt.Errorf("completing task %s: %v", id, err)
	}
	return nil
}

func (rq *redisQ) Count(context.Context) (int, int, error) {
	// both sets are counted in one script so a task moving between
	// them cannot make the queue look empty
	cmd := redis.NewSliceCmd("EVAL", countScript, 2, rq.pendingSetKey(), rq.runningSetKey())
	err := rq.rc.Process(cmd)
	if err != nil {
		return 0, 0, fmt.Errorf("counting tasks: %v", err)
	}
	v, err := cmd.Result()
	if err != nil {
		return 0, 0, fmt.Errorf("counting tasks: %v", err)
	}
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("counting tasks: redis returned %d counts instead of 2", len(v))
	}
	counts := make([]int, 2)
	for i, c := range v {
		c64, ok := c.(int64)
		if !ok {
			return 0, 0, fmt.Errorf("counting tasks: cannot extract an integer count from %v (%T)", c, c)
		}
		counts[i] = int(c64)
	}
	return counts[0], counts[1], nil
}

// Stop cancels the contexts of pulled tasks and the cleanup of
// timed out tasks. Tasks remain on redis.
func (rq *redisQ) Stop(context.Context) error {
	rq.allTaskCF()
	return nil
}

func (rq *redisQ) String() string {
	return fmt.Sprintf("{Queue redis %s}", rq.id)
}

func (rq *redisQ) dataKey(id string) string {
	return fmt.Sprintf("%s:task:%s:data", rq.id, id)
}

func (rq *redisQ) runningMarkKey(id string) string {
	return fmt.Sprintf("%s:task:%s:running", rq.id, id)
}

func (rq *redisQ) lockKey(id string) string {
	return fmt.Sprintf("%s:task:%s:lock", rq.id, id)
}

func (rq *redisQ) pendingSetKey() string {
	return fmt.Sprintf("%s:pending", rq.id)
}

func (rq *redisQ) runningSetKey() string {
	return fmt.Sprintf("%s:running", rq.id)
}

func (rq *redisQ) del(keys ...string) error {
	_, err := rq.rc.Del(keys...).Result()
	if err != nil {
		return fmt.Errorf("removing %q: %v", keys, err)
	}
	return nil
}

func (rq *redisQ) withLockFor(ctx context.Context, id string, additionalAttempts int, f func(ctx context.Context) error) error {
	lockKey := rq.lockKey(id)
	lockValue := randString(20)
	lctx, cf := context.WithTimeout(ctx, rq.lockTTL)
	defer cf()
	ok, err := rq.rc.SetNX(lockKey, lockValue, rq.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("could not acquire lock: %v", err)
	}
	if !ok {
		if additionalAttempts > 0 {
			cf()
			d, _ := rq.rc.TTL(lockKey).Result()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d + time.Duration(rand.Int63n(int64(failToLockSleep)*int64(additionalAttempts)))):
			}
			return rq.withLockFor(ctx, id, additionalAttempts-1, f)
		}
		return fmt.Errorf("could not acquire lock: already taken")
	}
	defer rq.rc.Eval(lockReleaseScript, []string{lockKey}, lockValue)
	return f(lctx)
}

func (rq *redisQ) dropTimedOutTasks() {
	ticker := time.NewTicker(rq.taskMaxRun / 2)
	defer ticker.Stop()
	for {
		iter := rq.rc.SScan(rq.runningSetKey(), 0, "", 0).Iterator()
		for iter.Next() {
			var timedOut bool
			id := iter.Val()
			rq.withLockFor(rq.allTaskCtx, id, 0, func(ctx context.Context) error {
				exists, err := rq.rc.Exists(rq.runningMarkKey(id)).Result()
				if err != nil {
					return err
				}
				timedOut = !exists
				return nil
			})
			if timedOut {
				rq.Drop(rq.allTaskCtx, id)
			}
			if rq.allTaskCtx.Err() != nil {
				return
			}
		}
		select {
		case <-rq.allTaskCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
