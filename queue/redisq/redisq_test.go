package redisq_test

import (
	"context"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redis "gopkg.in/redis.v5"

	archforest "github.com/AfafAlalwan/arch-forest"
	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/queue"
	"github.com/AfafAlalwan/arch-forest/queue/json"
	"github.com/AfafAlalwan/arch-forest/queue/redisq"
	"github.com/AfafAlalwan/arch-forest/target/cpp"
	treejson "github.com/AfafAlalwan/arch-forest/tree/json"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

// redisClient returns a client for the redis server at
// ARCHFOREST_TEST_REDIS (for instance localhost:6379), skipping
// the test when it is not set.
func redisClient(t *testing.T) (*redis.Client, string) {
	addr := os.Getenv("ARCHFOREST_TEST_REDIS")
	if addr == "" {
		t.Skip("ARCHFOREST_TEST_REDIS not set")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "archforest-test:" + uuid.New().String()
	t.Cleanup(func() {
		keys, _ := rc.Keys(prefix + ":*").Result()
		if len(keys) > 0 {
			rc.Del(keys...)
		}
		rc.Close()
	})
	return rc, prefix
}

func TestQueue(t *testing.T) {
	rc, prefix := redisClient(t)
	ctx := context.Background()
	q := redisq.New(prefix, rc, 0, time.Second, json.New(treejson.NewNodeEncodeDecoder()))
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, &queue.Task{Index: i, Tree: treetest.Random(r, 5, 2)}))
	}
	assert.Error(t, q.Push(ctx, &queue.Task{Index: 1, Tree: treetest.Random(r, 5, 2)}))

	pending, running, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
	assert.Equal(t, 0, running)

	task, tctx, err := q.Pull(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NotNil(t, task.Tree)
	assert.NoError(t, tctx.Err())
	pending, running, err = q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, running)

	require.NoError(t, q.Drop(ctx, task.ID()))
	seen := map[int]bool{}
	for {
		task, _, err := q.Pull(ctx)
		require.NoError(t, err)
		if task == nil {
			break
		}
		seen[task.Index] = true
		require.NoError(t, q.Complete(ctx, task.ID()))
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
	require.NoError(t, queue.WaitFor(ctx, q, time.Millisecond))

	require.NoError(t, q.Push(ctx, &queue.Task{Index: 9, Tree: treetest.Random(r, 1, 1)}))
	_, tctx, err = q.Pull(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Stop(ctx))
	assert.Error(t, tctx.Err())
}

func TestConvertOnRedis(t *testing.T) {
	rc, prefix := redisClient(t)
	ctx := context.Background()
	f := treetest.Forest(rand.New(rand.NewSource(6)), 6, 30, 3)
	target, err := cpp.New("forest", f.Dim, f.FeatureType, codegen.Truncate)
	require.NoError(t, err)
	c, err := archforest.NewOptimized(cost.Intel, 150)
	require.NoError(t, err)

	want, err := archforest.Convert(ctx, f, c, target, archforest.Workers(1))
	require.NoError(t, err)
	q := redisq.New(prefix, rc, time.Minute, time.Second, json.New(treejson.NewNodeEncodeDecoder()))
	got, err := archforest.Convert(ctx, f, c, target, archforest.Workers(3), archforest.WithQueue(q))
	require.NoError(t, err)
	assert.Equal(t, want.Files, got.Files)
}

func TestDrainOnRedis(t *testing.T) {
	rc, prefix := redisClient(t)
	ctx := context.Background()
	f := treetest.Forest(rand.New(rand.NewSource(12)), 5, 25, 3)
	c, err := archforest.NewOptimized(cost.ARM, 30)
	require.NoError(t, err)
	q := redisq.New(prefix, rc, time.Minute, time.Second, json.New(treejson.NewNodeEncodeDecoder()))
	for i, tr := range f.Trees {
		require.NoError(t, q.Push(ctx, &queue.Task{Index: i, Tree: tr}))
	}
	ls := redisq.NewLayoutStore(prefix, rc, time.Minute)
	require.NoError(t, archforest.Drain(ctx, q, c, ls, archforest.Workers(2)))

	for i, tr := range f.Trees {
		want, err := c.Emit(tr, i)
		require.NoError(t, err)
		got, err := ls.Layout(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	missing, err := ls.Layout(ctx, f.Len())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
