package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/dataset/inputsample"
)

type predictCmdConfig struct {
	*rootCmdConfig
	convertFlags
	input      string
	forestID   string
	maxDBConns int
	maxRejects int
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict with the layouts of a forest",
		Long: `Lay out every tree of a forest and predict on samples whose features
are read one per line from STDIN, printing the aggregated prediction of
every sample`,
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
			f, err := readForest(ctx, config.input, config.forestID, config.maxDBConns, config.logger)
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
			requester := &stderrFeatureValueRequester{maxRejects: config.maxRejects}
			r := inputsample.New(cmd.InOrStdin(), f.Dim, requester)
			preds := make([]float64, len(bodies))
			for {
				requester.rejects = 0
				s, err := r.Read()
				if err == io.EOF {
					return
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "reading sample: %v\n", err)
					os.Exit(6)
				}
				for i, b := range bodies {
					preds[i], err = codegen.Eval(b, s.Features)
					if err != nil {
						fmt.Fprintf(os.Stderr, "predicting with tree %d: %v\n", i, err)
						os.Exit(7)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), codegen.Aggregate(preds, f.NumClasses, lf))
			}
		},
	}
	config.convertFlags.register(cmd)
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a JSON or MessagePack (.msgpack) forest file, a SQLite3 (.db) file or a redis, MongoDB, PostgreSQL or MySQL URL to read the forest from (required)")
	cmd.PersistentFlags().StringVar(&(config.forestID), "forest-id", "", "id of the forest on a store (required when reading from a store)")
	cmd.PersistentFlags().IntVar(&(config.maxDBConns), "max-db-conns", 0, "limit to DB connections opened at a time (defaults to 0: no limit)")
	cmd.PersistentFlags().IntVar(&(config.maxRejects), "max-rejects", 3, "invalid values accepted for a feature before giving up (0 for no limit)")
	return cmd
}

func (pcc *predictCmdConfig) Validate() error {
	if pcc.input == "" {
		return fmt.Errorf("required input flag was not set, STDIN is read for samples")
	}
	if backendFor(pcc.input) != fileBackend && pcc.forestID == "" {
		return fmt.Errorf("required forest-id flag was not set for input %s", pcc.input)
	}
	if pcc.maxRejects < 0 {
		return fmt.Errorf("max-rejects flag must not be negative")
	}
	return nil
}

type stderrFeatureValueRequester struct {
	maxRejects int
	rejects    int
}

func (sfvr *stderrFeatureValueRequester) RequestValueFor(feature int) error {
	_, err := fmt.Fprintf(os.Stderr, "Please provide the sample's x[%d]:\n", feature)
	return err
}

func (sfvr *stderrFeatureValueRequester) RejectValueFor(feature int, value string) error {
	sfvr.rejects++
	if sfvr.maxRejects > 0 && sfvr.rejects > sfvr.maxRejects {
		return fmt.Errorf("too many invalid values for x[%d]", feature)
	}
	_, err := fmt.Fprintf(os.Stderr, "%q is not a valid value for the sample's x[%d], please provide a number:\n", value, feature)
	return err
}
