package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/json"
	"github.com/AfafAlalwan/arch-forest/tree/msgpack"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func run(t *testing.T, args ...string) string {
	out := &bytes.Buffer{}
	cmd := cliParser(context.Background())
	cmd.SetOut(out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func forestFiles(t *testing.T) (*tree.Forest, string, string) {
	ctx := context.Background()
	f := treetest.Forest(rand.New(rand.NewSource(8)), 4, 25, 3)
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "forest.json")
	jf, err := os.Create(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.WriteForest(ctx, f, json.NewNodeEncodeDecoder(), jf))
	require.NoError(t, jf.Close())
	mpPath := filepath.Join(dir, "forest.msgpack")
	mf, err := os.Create(mpPath)
	require.NoError(t, err)
	require.NoError(t, msgpack.WriteForest(ctx, f, mf))
	require.NoError(t, mf.Close())
	return f, jsonPath, mpPath
}

func TestBackendFor(t *testing.T) {
	testCases := map[string]backend{
		"":                               fileBackend,
		"forest.json":                    fileBackend,
		"forest.msgpack":                 fileBackend,
		"redis://localhost:6379/2":       redisBackend,
		"mongodb://localhost/archforest": mongoBackend,
		"postgres://u:p@localhost/db":    postgresBackend,
		"postgresql://localhost/db":      postgresBackend,
		"mysql://u:p@tcp(localhost)/db":  mysqlBackend,
		"sqlite3://forests":              sqliteBackend,
		"/var/lib/archforest/forests.db": sqliteBackend,
	}
	for location, want := range testCases {
		assert.Equal(t, want, backendFor(location), location)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("redis://:secret@cache:6380/3")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	opts, err = redisOptions("redis://localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, 0, opts.DB)

	_, err = redisOptions("redis://localhost:6379/cache")
	assert.Error(t, err)
}

func TestReadForest(t *testing.T) {
	ctx := context.Background()
	f, jsonPath, mpPath := forestFiles(t)
	for _, path := range []string{jsonPath, mpPath} {
		got, err := readForest(ctx, path, "", 0, logger(false))
		require.NoError(t, err)
		assert.Equal(t, f.Header(), got.Header())
	}
	_, err := readForest(ctx, "redis://localhost:6379", "", 0, logger(false))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	_, jsonPath, mpPath := forestFiles(t)
	out := filepath.Join(t.TempDir(), "gen")
	run(t, "generate", "-i", jsonPath, "-o", out, "-n", "iris", "-b", "1", "-w", "2")
	header, err := os.ReadFile(filepath.Join(out, "iris.h"))
	require.NoError(t, err)
	assert.Contains(t, string(header), "iris_predict0(")
	assert.Contains(t, string(header), "iris_predict(")
	source, err := os.ReadFile(filepath.Join(out, "iris.cpp"))
	require.NoError(t, err)
	assert.Contains(t, string(source), "goto Label")

	stdout := run(t, "generate", "-i", mpPath, "-n", "iris", "-b", "120", "-w", "1")
	assert.True(t, strings.HasPrefix(stdout, "// iris.h\n"))
	assert.Contains(t, stdout, "// iris.cpp\n")
	assert.Equal(t, string(header)+"\n", stdout[len("// iris.h\n"):strings.Index(stdout, "// iris.cpp\n")])

	cfgPath := filepath.Join(t.TempDir(), "archforest.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("target: go\nnamespace: iris\nleafFormat: exact\n"), 0644))
	stdout = run(t, "generate", "-i", jsonPath, "-c", cfgPath, "--baseline")
	assert.Contains(t, stdout, "package iris")
	assert.Contains(t, stdout, "func IrisPredict0(")
	assert.NotContains(t, stdout, "goto")
}

func TestVerify(t *testing.T) {
	_, jsonPath, _ := forestFiles(t)
	out := run(t, "verify", "-i", jsonPath, "--random", "300", "--seed", "4", "-b", "60")
	assert.Contains(t, out, "300 samples, 0 mismatches")

	samples := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(samples, []byte("label,a,b,c\n1,0.5,2,3\n0,9,9,9\n"), 0644))
	out = run(t, "verify", "-i", jsonPath, "-s", samples, "--algorithm", "bfs")
	assert.Contains(t, out, "2 samples, 0 mismatches")
}

func TestPartition(t *testing.T) {
	f, jsonPath, _ := forestFiles(t)
	out := run(t, "partition", "-i", jsonPath, "-a", "intel", "-b", "100")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, f.Len()+2)
	assert.Contains(t, lines[0], "kernel")
	assert.Contains(t, lines[len(lines)-1], "total")
}

func TestPublishAndShow(t *testing.T) {
	f, jsonPath, _ := forestFiles(t)
	db := filepath.Join(t.TempDir(), "forests.db")
	id := strings.TrimSpace(run(t, "publish", "-i", jsonPath, "-s", db))
	require.Len(t, id, 36)

	text := run(t, "show", "-i", db, "--forest-id", id, "--tree", "1")
	assert.Equal(t, "tree 1:\n"+f.Trees[1].String()+"\n", text)

	exported := filepath.Join(t.TempDir(), "forest.json")
	run(t, "show", "-i", db, "--forest-id", id, "-f", "json", "-o", exported)
	got, err := json.ReadForestFromFilePath(exported)
	require.NoError(t, err)
	assert.Equal(t, f.Header(), got.Header())

	run(t, "publish", "-i", db, "--input-forest-id", id, "-s", db, "--forest-id", "copy", "--feature-type", "unsigned char")
	copied, err := readForest(context.Background(), db, "copy", 0, logger(false))
	require.NoError(t, err)
	assert.Equal(t, "unsigned char", copied.FeatureType)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "archforest v0.1.0\n", run(t, "version"))
}

func TestWriteFiles(t *testing.T) {
	files := []codegen.File{{Name: "a.h", Content: []byte("A")}, {Name: "a.cpp", Content: []byte("B")}}
	buf := &bytes.Buffer{}
	require.NoError(t, writeFiles("", files, buf))
	assert.Equal(t, "// a.h\nA\n// a.cpp\nB\n", buf.String())

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeFiles(dir, files, nil))
	data, err := os.ReadFile(filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
}

func TestWatchLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	calls := make(chan struct{}, 10)
	done := make(chan error)
	watched := map[string]bool{"/tmp/forest.json": true}
	go func() {
		done <- watchLoop(ctx, events, errs, watched, 20*time.Millisecond, func() { calls <- struct{}{} }, logger(false))
	}()

	events <- fsnotify.Event{Name: "/tmp/other.json", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "/tmp/forest.json", Op: fsnotify.Chmod}
	events <- fsnotify.Event{Name: "/tmp/forest.json", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "/tmp/forest.json", Op: fsnotify.Create}
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("no regeneration after a write")
	}
	select {
	case <-calls:
		t.Fatal("regenerated twice for one burst of events")
	case <-time.After(100 * time.Millisecond):
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestPredict(t *testing.T) {
	f, jsonPath, _ := forestFiles(t)
	samples := [][]float64{{0.5, 2, 3}, {9, -1, 0.25}}
	in := &bytes.Buffer{}
	want := &bytes.Buffer{}
	for _, x := range samples {
		preds := make([]float64, f.Len())
		for i, tr := range f.Trees {
			b, err := codegen.Baseline(tr, i)
			require.NoError(t, err)
			preds[i], err = codegen.Eval(b, x)
			require.NoError(t, err)
		}
		fmt.Fprintln(want, codegen.Aggregate(preds, f.NumClasses, codegen.Truncate))
		for _, v := range x {
			fmt.Fprintln(in, v)
		}
	}
	in.WriteString("abc\n")

	out := &bytes.Buffer{}
	cmd := cliParser(context.Background())
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("nope\n" + in.String()))
	cmd.SetArgs([]string{"predict", "-i", jsonPath, "-b", "40"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, want.String(), out.String())
}

func TestLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logOutput = buf
	defer func() { logOutput = os.Stderr }()

	logger(false).Logf("hidden %d", 1)
	assert.Empty(t, buf.String())

	logger(true).Logf("tree %d: %s", 3, "done")
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{3} archforest: tree 3: done\n$`, buf.String())
}

func TestWorkLoop(t *testing.T) {
	calls := 0
	drain := func(context.Context) error {
		calls++
		return nil
	}
	require.NoError(t, workLoop(context.Background(), drain, time.Millisecond, true, logger(false)))
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	calls = 0
	drain = func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	}
	require.NoError(t, workLoop(ctx, drain, time.Millisecond, false, logger(false)))
	assert.Equal(t, 3, calls)

	failure := errors.New("tree 2 failed")
	drain = func(context.Context) error { return failure }
	assert.Equal(t, failure, workLoop(context.Background(), drain, time.Millisecond, false, logger(false)))
}

func TestWorkValidate(t *testing.T) {
	testCases := map[string]*workCmdConfig{
		"no queue":    {queueID: "q", poll: time.Second},
		"not redis":   {queueURL: "postgres://localhost/db", queueID: "q", poll: time.Second},
		"no queue id": {queueURL: "redis://localhost:6379", poll: time.Second},
		"zero poll":   {queueURL: "redis://localhost:6379", queueID: "q"},
	}
	for name, wcc := range testCases {
		assert.Error(t, wcc.Validate(), name)
	}
	ok := &workCmdConfig{queueURL: "redis://localhost:6379", queueID: "q", poll: time.Second}
	assert.NoError(t, ok.Validate())

	gcc := &generateCmdConfig{queueID: "q"}
	assert.Error(t, gcc.Validate())
}
