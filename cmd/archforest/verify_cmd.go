package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/dataset"
	"github.com/AfafAlalwan/arch-forest/verify"
)

type verifyCmdConfig struct {
	*rootCmdConfig
	convertFlags
	samplesSource
	input    string
	forestID string
	random   int
	seed     int64
}

func verifyCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &verifyCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the layouts of a forest against its trees",
		Long: `Lay out every tree of a forest and check that the layouts make the same
decisions as the trees on a set of labeled samples or on random inputs,
reporting mismatches and the accuracy of the forest`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := config.ctx
			c, err := config.load(cmd, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			f, err := readForest(ctx, config.input, config.forestID, config.maxConns, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			conv, err := c.Converter()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			lf, _ := codegen.ParseLeafFormat(c.LeafFormat)
			bodies := make([]*codegen.Body, 0, len(f.Trees))
			for i, t := range f.Trees {
				b, err := conv.Emit(t, i)
				if err != nil {
					fmt.Fprintf(os.Stderr, "laying out tree %d: %v\n", i, err)
					os.Exit(5)
				}
				bodies = append(bodies, b)
			}
			var ds dataset.Dataset
			if config.random > 0 {
				config.Logf("Drawing %d random samples with seed %d...", config.random, config.seed)
				ds = verify.Random(config.seed, f, config.random)
			} else {
				var release func()
				ds, release, err = config.samplesSource.open(ctx, f.Dim, config.logger)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(6)
				}
				defer release()
			}
			config.Logf("Verifying %d layouts from %s...", len(bodies), conv.Name())
			report, err := verify.Check(ctx, f, bodies, ds, lf)
			if err != nil {
				fmt.Fprintf(os.Stderr, "verifying layouts: %v\n", err)
				os.Exit(7)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			if !report.OK() {
				fmt.Fprintln(os.Stderr, report.FirstMismatch)
				os.Exit(8)
			}
		},
	}
	config.convertFlags.register(cmd)
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to read the forest from")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id of the forest on a store (required when reading from a store)")
	cmd.PersistentFlags().StringVarP(&(config.location), "samples", "s", "", "path to a CSV file with a label and the features of a sample per line, a SQLite3 (.db) file or a MongoDB, PostgreSQL or MySQL URL to read samples from (defaults to STDIN, interpreted as CSV)")
	cmd.PersistentFlags().StringVarP(&(config.query), "query", "q", "", "SQL query returning the label and features of a sample per row (required for SQL samples)")
	cmd.PersistentFlags().StringVar(&(config.collection), "collection", "", "MongoDB collection with the samples (defaults to samples)")
	cmd.PersistentFlags().IntVar(&(config.maxConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	cmd.PersistentFlags().IntVarP(&(config.random), "random", "r", 0, "verify on this many random samples instead of reading them")
	cmd.PersistentFlags().Int64Var(&(config.seed), "seed", time.Now().UnixNano(), "seed for random samples")
	return cmd
}

func (vcc *verifyCmdConfig) Validate() error {
	if vcc.input == "" && vcc.location == "" && vcc.random == 0 {
		return fmt.Errorf("forest and samples cannot both be read from STDIN")
	}
	if backendFor(vcc.input) != fileBackend && vcc.forestID == "" {
		return fmt.Errorf("required forest-id flag was not set for input %s", vcc.input)
	}
	if vcc.random < 0 {
		return fmt.Errorf("random flag must not be negative")
	}
	return nil
}
