package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	archforest "github.com/AfafAlalwan/arch-forest"
)

type workCmdConfig struct {
	*rootCmdConfig
	convertFlags
	queueURL      string
	queueID       string
	poll          time.Duration
	exitWhenEmpty bool
}

func workCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &workCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Lay out trees queued by a generate command",
		Long: `Take part in a generate command run with a redis queue, laying out the
trees of its queue and storing their layouts on redis for the generate
command to assemble. The conversion settings must be the ones of the
generate command.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			c, err := config.load(cmd, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			conv, err := c.Converter()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			q, ls, closeQueue, err := redisQueue(config.queueURL, config.queueID, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			defer closeQueue()
			defer q.Stop(context.Background())
			drain := func(ctx context.Context) error {
				return archforest.Drain(ctx, q, conv, ls, archforest.Workers(c.Workers), archforest.WithLogger(config.logger))
			}
			err = workLoop(config.ctx, drain, config.poll, config.exitWhenEmpty, config.logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "working on queue %s: %v\n", config.queueID, err)
				closeQueue()
				os.Exit(6)
			}
		},
	}
	config.convertFlags.register(cmd)
	cmd.PersistentFlags().StringVar(&(config.queueURL), "queue", "", "redis URL of the server with the queue (required)")
	cmd.PersistentFlags().StringVar(&(config.queueID), "queue-id", "", "id of the queue, as printed by the generate command (required)")
	cmd.PersistentFlags().DurationVar(&(config.poll), "poll", time.Second, "time to wait before looking for tasks again when the queue is empty")
	cmd.PersistentFlags().BoolVar(&(config.exitWhenEmpty), "exit-when-empty", false, "exit once the queue is empty instead of waiting for more tasks")
	return cmd
}

func (wcc *workCmdConfig) Validate() error {
	if wcc.queueURL == "" {
		return fmt.Errorf("required queue flag was not set")
	}
	if backendFor(wcc.queueURL) != redisBackend {
		return fmt.Errorf("queue flag must be a redis URL, got %s", wcc.queueURL)
	}
	if wcc.queueID == "" {
		return fmt.Errorf("required queue-id flag was not set")
	}
	if wcc.poll <= 0 {
		return fmt.Errorf("poll flag must be positive")
	}
	return nil
}

/*
workLoop calls drain until it fails or, with exitWhenEmpty, until it
returns for the first time. Otherwise it waits poll between calls, as
tasks may be pushed later, and returns nil once the context is
cancelled.
*/
func workLoop(ctx context.Context, drain func(context.Context) error, poll time.Duration, exitWhenEmpty bool, l logger) error {
	for {
		err := drain(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if exitWhenEmpty {
			return nil
		}
		l.Logf("Queue empty, looking again in %v", poll)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}
	}
}
