package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/json"
	"github.com/AfafAlalwan/arch-forest/tree/msgpack"
)

type showCmdConfig struct {
	*rootCmdConfig
	input      string
	forestID   string
	tree       int
	format     string
	output     string
	maxDBConns int
}

func showCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &showCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a forest",
		Long: `Print the trees of a forest as text, or write the forest as JSON or
MessagePack to convert it between formats`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := config.ctx
			f, err := readForest(ctx, config.input, config.forestID, config.maxDBConns, config.logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			if config.tree >= f.Len() {
				fmt.Fprintf(os.Stderr, "tree %d requested from a forest of %d trees\n", config.tree, f.Len())
				os.Exit(3)
			}
			w := cmd.OutOrStdout()
			if config.output != "" {
				file, err := os.Create(config.output)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(4)
				}
				defer file.Close()
				w = file
			}
			if err = config.write(f, w); err != nil {
				fmt.Fprintf(os.Stderr, "writing forest: %v\n", err)
				os.Exit(4)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to read the forest from (defaults to STDIN, interpreted as JSON)")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id of the forest on a store (required when reading from a store)")
	cmd.PersistentFlags().IntVar(&(config.tree), "tree", -1, "index of the only tree to print as text (defaults to all)")
	cmd.PersistentFlags().StringVarP(&(config.format), "format", "f", "text", "output format: text, json or msgpack")
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "path to a file to write to (defaults to STDOUT)")
	cmd.PersistentFlags().IntVar(&(config.maxDBConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	return cmd
}

func (scc *showCmdConfig) Validate() error {
	switch scc.format {
	case "text", "json", "msgpack":
	default:
		return fmt.Errorf("unknown format %s, must be text, json or msgpack", scc.format)
	}
	if scc.tree >= 0 && scc.format != "text" {
		return fmt.Errorf("tree flag only applies to the text format")
	}
	if backendFor(scc.input) != fileBackend && scc.forestID == "" {
		return fmt.Errorf("required forest-id flag was not set for input %s", scc.input)
	}
	return nil
}

func (scc *showCmdConfig) write(f *tree.Forest, w io.Writer) error {
	switch scc.format {
	case "json":
		return json.WriteForest(scc.ctx, f, json.NewNodeEncodeDecoder(), w)
	case "msgpack":
		return msgpack.WriteForest(scc.ctx, f, w)
	}
	for i, t := range f.Trees {
		if scc.tree >= 0 && i != scc.tree {
			continue
		}
		if _, err := fmt.Fprintf(w, "tree %d:\n%v\n", i, t); err != nil {
			return err
		}
	}
	return nil
}
