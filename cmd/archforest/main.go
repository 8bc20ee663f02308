package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	logger
	ctx context.Context
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cliParser(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "archforest",
		Short: "archforest turns decision tree ensembles into source code",
		Long: `A tool to generate C or Go code from trained decision tree ensembles,
laying out the most likely branches of every tree inline within a code size
budget for the instruction cache of the target architecture`,
	}
	config := &rootCmdConfig{ctx: ctx}
	rootCmd.PersistentFlags().BoolVarP((*bool)(&(config.logger)), "verbose", "v", false, "log progress to STDERR")
	rootCmd.AddCommand(
		versionCmd(),
		generateCmd(config),
		verifyCmd(config),
		partitionCmd(config),
		publishCmd(config),
		showCmd(config),
		predictCmd(config),
		workCmd(config),
	)
	return rootCmd
}
