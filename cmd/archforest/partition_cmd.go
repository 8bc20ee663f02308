package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/codegen"
)

type partitionCmdConfig struct {
	*rootCmdConfig
	convertFlags
	input    string
	forestID string
	maxConns int
}

func partitionCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &partitionCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Show how the trees of a forest are laid out",
		Long: `Lay out every tree of a forest and print, per tree, the number of nodes
in its kernel, the number of labeled blocks and the estimated cost of the
inline and deferred code`,
		Run: func(cmd *cobra.Command, args []string) {
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
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "tree\tnodes\tkernel\tlabels\tinline\tdeferred\t")
			var total codegen.Stats
			for i, t := range f.Trees {
				b, err := conv.Emit(t, i)
				if err != nil {
					w.Flush()
					fmt.Fprintf(os.Stderr, "laying out tree %d: %v\n", i, err)
					os.Exit(5)
				}
				writeStats(w, fmt.Sprint(i), b.Stats)
				total = total.Add(b.Stats)
			}
			writeStats(w, "total", total)
			w.Flush()
		},
	}
	config.convertFlags.register(cmd)
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to read the forest from (defaults to STDIN, interpreted as JSON)")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id of the forest on a store (required when reading from a store)")
	cmd.PersistentFlags().IntVar(&(config.maxConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	return cmd
}

func writeStats(w *tabwriter.Writer, name string, s codegen.Stats) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t\n", name, s.Nodes, s.KernelNodes, s.Labels, s.InlineCost, s.DeferredCost)
}
