package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	redis "gopkg.in/redis.v5"

	archforest "github.com/AfafAlalwan/arch-forest"
	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/queue"
	qjson "github.com/AfafAlalwan/arch-forest/queue/json"
	"github.com/AfafAlalwan/arch-forest/queue/redisq"
	"github.com/AfafAlalwan/arch-forest/tree/json"
)

const (
	watchDebounce   = 200 * time.Millisecond
	queueTaskMaxRun = time.Minute
	queueLockTTL    = time.Second
	queueLayoutTTL  = time.Hour
	queueKeyPrefix  = "archforest:queues:"
)

type generateCmdConfig struct {
	*rootCmdConfig
	convertFlags
	input      string
	forestID   string
	output     string
	queueURL   string
	queueID    string
	maxDBConns int
	watch      bool
}

func generateCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &generateCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate source code for a forest",
		Long: `Generate the header and source files of a forest, with one prediction
function per tree plus a function aggregating their predictions`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if config.watch {
				err = config.watchAndGenerate(cmd)
			} else {
				err = config.generate(cmd)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitCode(err))
			}
		},
	}
	config.convertFlags.register(cmd)
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to read the forest from (defaults to STDIN, interpreted as JSON)")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id of the forest on a store (required when reading from a store)")
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "directory the generated files are written to (defaults to STDOUT)")
	cmd.PersistentFlags().StringVar(&(config.queueURL), "queue", "", "redis URL of a server to keep the conversion tasks on, for work commands to take part (defaults to memory)")
	cmd.PersistentFlags().StringVar(&(config.queueID), "queue-id", "", "id of the queue on redis, to be given to work commands (defaults to a random UUID)")
	cmd.PersistentFlags().IntVar(&(config.maxDBConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	cmd.PersistentFlags().BoolVar(&(config.watch), "watch", false, "generate again whenever the forest, config or cost table files change")
	return cmd
}

func (gcc *generateCmdConfig) Validate() error {
	if gcc.watch && (gcc.input == "" || backendFor(gcc.input) != fileBackend) {
		return fmt.Errorf("watch flag requires a forest file as input")
	}
	if backendFor(gcc.input) != fileBackend && gcc.forestID == "" {
		return fmt.Errorf("required forest-id flag was not set for input %s", gcc.input)
	}
	if gcc.queueURL != "" && backendFor(gcc.queueURL) != redisBackend {
		return fmt.Errorf("queue flag must be a redis URL, got %s", gcc.queueURL)
	}
	if gcc.queueID != "" && gcc.queueURL == "" {
		return fmt.Errorf("queue-id flag requires the queue flag")
	}
	return nil
}

// stageError carries the exit code of the stage that failed
type stageError struct {
	code int
	err  error
}

func (se *stageError) Error() string {
	return se.err.Error()
}

func exitCode(err error) int {
	if se, ok := err.(*stageError); ok {
		return se.code
	}
	return 1
}

func (gcc *generateCmdConfig) generate(cmd *cobra.Command) error {
	ctx := gcc.ctx
	c, err := gcc.load(cmd, gcc.logger)
	if err != nil {
		return &stageError{2, err}
	}
	f, err := readForest(ctx, gcc.input, gcc.forestID, gcc.maxDBConns, gcc.logger)
	if err != nil {
		return &stageError{3, err}
	}
	gcc.Logf("Forest with %d trees, %d nodes, %d features and %d classes read", f.Len(), f.Nodes(), f.Dim, f.NumClasses)
	conv, err := c.Converter()
	if err != nil {
		return &stageError{4, err}
	}
	target, err := c.Renderer(f.Dim, f.FeatureType)
	if err != nil {
		return &stageError{4, err}
	}
	opts := c.ConvertOptions(gcc.logger)
	if gcc.queueURL != "" {
		id := gcc.queueID
		if id == "" {
			id = uuid.New().String()
		}
		fmt.Fprintf(os.Stderr, "Queueing conversion tasks under queue id %s\n", id)
		q, ls, closeQueue, err := redisQueue(gcc.queueURL, id, gcc.logger)
		if err != nil {
			return &stageError{5, err}
		}
		defer closeQueue()
		opts = append(opts, archforest.WithQueue(q), archforest.WithLayoutStore(ls))
	}
	gcc.Logf("Converting forest with %s...", conv.Name())
	result, err := archforest.Convert(ctx, f, conv, target, opts...)
	if err != nil {
		return &stageError{6, err}
	}
	for _, te := range result.Failed {
		fmt.Fprintln(os.Stderr, te)
	}
	gcc.Logf("Done: %v", result.Stats)
	if err = writeFiles(gcc.output, result.Files, cmd.OutOrStdout()); err != nil {
		return &stageError{7, err}
	}
	return nil
}

// redisQueue returns the queue with the given id on the redis server at
// the URL, the store for the layouts of its trees and a function to close
// the connection.
func redisQueue(url, id string, l logger) (queue.Queue, *redisq.LayoutStore, func(), error) {
	opts, err := redisOptions(url)
	if err != nil {
		return nil, nil, nil, err
	}
	rc := redis.NewClient(opts)
	key := queueKeyPrefix + id
	l.Logf("Using the queue on redis at %s under %s", opts.Addr, key)
	q := redisq.New(key, rc, queueTaskMaxRun, queueLockTTL, qjson.New(json.NewNodeEncodeDecoder()))
	return q, redisq.NewLayoutStore(key, rc, queueLayoutTTL), func() { rc.Close() }, nil
}

/*
watchAndGenerate generates the code and then generates it again every
time the forest file, the config file or the cost table file are written,
until the command context is cancelled. Failed generations are reported
and do not stop the watch.
*/
func (gcc *generateCmdConfig) watchAndGenerate(cmd *cobra.Command) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &stageError{8, fmt.Errorf("creating file watcher: %v", err)}
	}
	defer watcher.Close()
	watched := map[string]bool{}
	for _, path := range []string{gcc.input, gcc.configFile, gcc.settings.CostTable} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return &stageError{8, err}
		}
		watched[abs] = true
		// editors replace files, so their directories are watched
		if err = watcher.Add(filepath.Dir(abs)); err != nil {
			return &stageError{8, fmt.Errorf("watching %s: %v", path, err)}
		}
	}
	regenerate := func() {
		if err := gcc.generate(cmd); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		gcc.Logf("Generated at %s", time.Now().Format(time.RFC3339))
	}
	regenerate()
	return watchLoop(gcc.ctx, watcher.Events, watcher.Errors, watched, watchDebounce, regenerate, gcc.logger)
}

// watchLoop calls f once for every burst of write or create events on
// the watched files, after no more events arrive for the debounce
// duration. It returns when the context is cancelled.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, watched map[string]bool, debounce time.Duration, f func(), l logger) error {
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			l.Logf("%s changed", ev.Name)
			timer = time.After(debounce)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			l.Logf("watching files: %v", err)
		case <-timer:
			timer = nil
			f()
		}
	}
}

/*
writeFiles writes the files to the given directory, creating it if
needed. With an empty directory the files are written one after the
other to w, each preceded by a comment with its name.
*/
func writeFiles(dir string, files []codegen.File, w io.Writer) error {
	if dir == "" {
		for _, file := range files {
			if _, err := fmt.Fprintf(w, "// %s\n%s\n", file.Name, file.Content); err != nil {
				return fmt.Errorf("writing %s: %v", file.Name, err)
			}
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %v", err)
	}
	for _, file := range files {
		path := filepath.Join(dir, file.Name)
		if err := os.WriteFile(path, file.Content, 0644); err != nil {
			return fmt.Errorf("writing %s: %v", path, err)
		}
	}
	return nil
}
