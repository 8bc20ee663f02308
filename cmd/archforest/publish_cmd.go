package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/tree"
)

type publishCmdConfig struct {
	*rootCmdConfig
	input       string
	inputID     string
	store       string
	forestID    string
	maxDBConns  int
	featureType string
}

func publishCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &publishCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Store a forest on a database",
		Long: `Store a forest on a redis, MongoDB, PostgreSQL, MySQL or SQLite3 database
under a forest id, generated unless given, and print the id`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := config.ctx
			f, err := readForest(ctx, config.input, config.inputID, config.maxDBConns, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			if config.featureType != "" {
				f, err = tree.NewForest(f.Trees, f.Dim, config.featureType, f.NumClasses)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(2)
				}
			}
			if config.forestID == "" {
				config.forestID = uuid.New().String()
			}
			fs, err := openStore(ctx, config.store, config.forestID, config.maxDBConns, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			defer fs.Close(ctx)
			config.Logf("Storing forest with %d trees as %s...", f.Len(), config.forestID)
			err = tree.SaveForest(ctx, fs, f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "storing forest: %v\n", err)
				fs.Close(ctx)
				os.Exit(4)
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.forestID)
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, or a store location, to read the forest from (defaults to STDIN, interpreted as JSON)")
	cmd.PersistentFlags().StringVar(&(config.inputID), "input-forest-id", "", "id of the forest on the input store")
	cmd.PersistentFlags().StringVarP(&(config.store), "store", "s", "", "path to a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to store the forest on (required)")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id to store the forest under (defaults to a random UUID)")
	cmd.PersistentFlags().StringVar(&(config.featureType), "feature-type", "", "C element type of the input to store with the forest")
	cmd.PersistentFlags().IntVar(&(config.maxDBConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	return cmd
}

func (pcc *publishCmdConfig) Validate() error {
	if pcc.store == "" {
		return fmt.Errorf("required store flag was not set")
	}
	if backendFor(pcc.store) == fileBackend {
		return fmt.Errorf("%s is not a forest store location", pcc.store)
	}
	if backendFor(pcc.input) != fileBackend && pcc.inputID == "" {
		return fmt.Errorf("required input-forest-id flag was not set for input %s", pcc.input)
	}
	return nil
}
