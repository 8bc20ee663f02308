package archforest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/kernel"
	"github.com/AfafAlalwan/arch-forest/target/cpp"
	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

type recordingLogger struct {
	lock  sync.Mutex
	lines []string
}

func (rl *recordingLogger) Logf(format string, a ...interface{}) {
	rl.lock.Lock()
	defer rl.lock.Unlock()
	rl.lines = append(rl.lines, fmt.Sprintf(format, a...))
}

func renderer(t *testing.T, f *tree.Forest) Target {
	r, err := cpp.New("forest", f.Dim, f.FeatureType, codegen.Truncate)
	require.NoError(t, err)
	return r
}

func TestNewOptimized(t *testing.T) {
	testCases := []struct {
		name   string
		arch   cost.Architecture
		budget cost.Units
		opts   []Option
		is     error
	}{
		{name: "unsupported architecture", arch: "riscv", budget: 100, is: cost.ErrUnsupportedArchitecture},
		{name: "zero budget", arch: cost.ARM, budget: 0, is: kernel.ErrInvalidBudget},
		{name: "negative budget", arch: cost.Intel, budget: -1, is: kernel.ErrInvalidBudget},
		{name: "unknown algorithm", arch: cost.ARM, budget: 100, opts: []Option{WithAlgorithm("dfs")}, is: kernel.ErrUnknownAlgorithm},
		{name: "invalid max paths", arch: cost.ARM, budget: 100, opts: []Option{WithMaxPaths(0)}},
		{name: "nil cost table", arch: cost.ARM, budget: 100, opts: []Option{WithCostTable(nil)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOptimized(tc.arch, tc.budget, tc.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			var ce *ConfigError
			assert.True(t, errors.As(err, &ce))
			if tc.is != nil {
				assert.True(t, errors.Is(err, tc.is), err.Error())
			}
		})
	}

	c, err := NewOptimized(cost.ARM, 32000, WithAlgorithm(kernel.BreadthFirst), WithPathOrder(kernel.Lexicographic))
	require.NoError(t, err)
	assert.Equal(t, "optimized (arm, budget 32000, bfs)", c.Name())
	assert.Equal(t, "baseline", NewBaseline().Name())
}

func TestConvert(t *testing.T) {
	ctx := context.Background()
	f := treetest.Forest(rand.New(rand.NewSource(3)), 12, 40, 4)
	target := renderer(t, f)
	c, err := NewOptimized(cost.ARM, 200)
	require.NoError(t, err)

	logger := &recordingLogger{}
	sequential, err := Convert(ctx, f, c, target, Workers(1), WithLogger(logger))
	require.NoError(t, err)
	require.Len(t, sequential.Units, 12)
	assert.Empty(t, sequential.Failed)
	require.Len(t, sequential.Files, 2)
	assert.Len(t, logger.lines, 13)
	assert.True(t, strings.HasPrefix(logger.lines[0], "tree 0: "))

	var nodes int
	for i, u := range sequential.Units {
		assert.Equal(t, i, u.Tree)
		assert.Equal(t, fmt.Sprintf("forest_predict%d", i), u.Name)
		nodes += u.Body.Stats.Nodes
	}
	assert.Equal(t, f.Nodes(), nodes)
	assert.Equal(t, nodes, sequential.Stats.Nodes)

	for _, workers := range []int{2, 5, 32} {
		concurrent, err := Convert(ctx, f, c, target, Workers(workers))
		require.NoError(t, err)
		assert.Equal(t, sequential.Files, concurrent.Files, "%d workers", workers)
		assert.Equal(t, sequential.Stats, concurrent.Stats)
	}
}

func TestConvertKeepsDecisions(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(11))
	f := treetest.Forest(r, 6, 60, 4)
	target := renderer(t, f)

	base, err := Convert(ctx, f, NewBaseline(), target)
	require.NoError(t, err)
	for _, arch := range []cost.Architecture{cost.ARM, cost.Intel} {
		for _, alg := range []kernel.Algorithm{kernel.PathAlgorithm, kernel.BreadthFirst} {
			c, err := NewOptimized(arch, 150, WithAlgorithm(alg))
			require.NoError(t, err)
			opt, err := Convert(ctx, f, c, target)
			require.NoError(t, err)
			for i := 0; i < 200; i++ {
				x := treetest.Sample(r, 4)
				for j := range f.Trees {
					want, err := codegen.Eval(base.Units[j].Body, x)
					require.NoError(t, err)
					got, err := codegen.Eval(opt.Units[j].Body, x)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}
			}
		}
	}
}

func TestConvertTreeErrors(t *testing.T) {
	ctx := context.Background()
	single, err := tree.New(0, []*tree.Node{tree.NewLeaf(0, 1)})
	require.NoError(t, err)
	wide, err := tree.New(0, []*tree.Node{
		tree.NewSplit(0, 0, 1.5, 1, 2, 0.5, 0.5),
		tree.NewLeaf(1, 0),
		tree.NewLeaf(2, 1),
	})
	require.NoError(t, err)
	f, err := tree.NewForest([]*tree.Tree{single, wide, single}, 1, "float", 2)
	require.NoError(t, err)
	target := renderer(t, f)
	c, err := NewOptimized(cost.Intel, 1000, WithMaxPaths(1))
	require.NoError(t, err)

	t.Run("abort", func(t *testing.T) {
		_, err := Convert(ctx, f, c, target, Workers(1))
		require.Error(t, err)
		var te *TreeError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 1, te.Tree)
		assert.True(t, errors.Is(err, kernel.ErrTooManyPaths))
	})
	t.Run("continue", func(t *testing.T) {
		res, err := Convert(ctx, f, c, target, Workers(2), ContinueOnError())
		require.NoError(t, err)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, 1, res.Failed[0].Tree)
		require.Len(t, res.Units, 2)
		assert.Equal(t, 0, res.Units[0].Tree)
		assert.Equal(t, 2, res.Units[1].Tree)
		src := string(res.Files[1].Content)
		assert.Contains(t, src, "forest_predict2(")
		assert.NotContains(t, src, "forest_predict1(")
	})
	t.Run("all failed", func(t *testing.T) {
		only, err := tree.NewForest([]*tree.Tree{wide}, 1, "float", 2)
		require.NoError(t, err)
		res, err := Convert(ctx, only, c, target, ContinueOnError())
		assert.Error(t, err)
		require.NotNil(t, res)
		assert.Len(t, res.Failed, 1)
	})
	t.Run("invalid options", func(t *testing.T) {
		_, err := Convert(ctx, f, c, target, Workers(0))
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		_, err = Convert(ctx, nil, c, target)
		assert.True(t, errors.Is(err, tree.ErrInvalidForest))
	})
	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Convert(cctx, f, NewBaseline(), target)
		assert.Error(t, err)
	})
}

func TestConvertTree(t *testing.T) {
	tr, err := tree.New(0, []*tree.Node{
		tree.NewSplit(0, 0, 1.5, 1, 2, 0.6, 0.4),
		tree.NewLeaf(1, 0),
		tree.NewLeaf(2, 1),
	})
	require.NoError(t, err)
	r, err := cpp.New("model", 1, "float", codegen.Truncate)
	require.NoError(t, err)
	c, err := NewOptimized(cost.ARM, 32000)
	require.NoError(t, err)

	u, err := ConvertTree(tr, 0, c, r)
	require.NoError(t, err)
	again, err := ConvertTree(tr, 0, c, r)
	require.NoError(t, err)
	assert.Equal(t, u.Definition, again.Definition)
	assert.Equal(t, "unsigned int model_predict0(float const pX[1]){\n\tif(pX[0] <= 1.5){\n\t\treturn 0;\n\t} else {\n\t\treturn 1;\n\t}\n}\n", u.Definition)
}
