package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AfafAlalwan/arch-forest/config"
	"github.com/AfafAlalwan/arch-forest/dataset"
)

// convertFlags are the flags of the commands that lay out trees.
// They override the settings of the config file when set.
type convertFlags struct {
	configFile      string
	featureTypeFrom string
	settings        config.Config
}

func (cf *convertFlags) register(cmd *cobra.Command) {
	d := config.Default()
	flags := cmd.PersistentFlags()
	flags.StringVarP(&(cf.configFile), "config", "c", "", "path to a YML file with the conversion settings, overridden by flags")
	flags.StringVarP(&(cf.settings.Arch), "arch", "a", d.Arch, "target architecture whose costs are used to fill the kernel (arm, intel)")
	flags.IntVarP(&(cf.settings.Budget), "budget", "b", d.Budget, "size of the kernel of every tree in cost units")
	flags.BoolVar(&(cf.settings.Baseline), "baseline", d.Baseline, "lay out trees as plain nested if/else statements, ignoring costs")
	flags.StringVar(&(cf.settings.Algorithm), "algorithm", d.Algorithm, "partitioning algorithm: path or bfs")
	flags.StringVar(&(cf.settings.PathOrder), "path-order", d.PathOrder, "order the path algorithm walks paths in: probability or lexicographic")
	flags.IntVar(&(cf.settings.MaxPaths), "max-paths", d.MaxPaths, "maximum number of root to leaf paths of a tree for the path algorithm")
	flags.StringVar(&(cf.settings.CostTable), "cost-table", d.CostTable, "path to a YML file with a recalibrated cost table")
	flags.StringVarP(&(cf.settings.Namespace), "namespace", "n", d.Namespace, "prefix of the generated function names")
	flags.StringVar(&(cf.settings.Package), "package", d.Package, "package of the generated Go code (defaults to the namespace)")
	flags.StringVarP(&(cf.settings.Target), "target", "t", d.Target, "language of the generated code: cpp or go")
	flags.StringVar(&(cf.settings.LeafFormat), "leaf-format", d.LeafFormat, "literal format of leaf predictions: truncate or exact")
	flags.StringVar(&(cf.settings.FeatureType), "feature-type", d.FeatureType, "C element type of the input, overriding the one stored with the forest")
	flags.StringVar(&(cf.featureTypeFrom), "feature-type-from", "", "path to a CSV file with samples to infer the C element type of the input from")
	flags.IntVarP(&(cf.settings.Workers), "workers", "w", d.Workers, "number of trees converted concurrently")
	flags.BoolVar(&(cf.settings.ContinueOnError), "continue-on-error", d.ContinueOnError, "leave out trees that cannot be converted instead of failing")
}

/*
load returns the settings of the config file, or the default ones if no
file was given, overridden by the flags set on the command line, and
checks them.
*/
func (cf *convertFlags) load(cmd *cobra.Command, l logger) (*config.Config, error) {
	c := config.Default()
	if cf.configFile != "" {
		l.Logf("Reading settings from %s...", cf.configFile)
		var err error
		c, err = config.ReadFromFile(cf.configFile)
		if err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"arch", func() { c.Arch = cf.settings.Arch }},
		{"budget", func() { c.Budget = cf.settings.Budget }},
		{"baseline", func() { c.Baseline = cf.settings.Baseline }},
		{"algorithm", func() { c.Algorithm = cf.settings.Algorithm }},
		{"path-order", func() { c.PathOrder = cf.settings.PathOrder }},
		{"max-paths", func() { c.MaxPaths = cf.settings.MaxPaths }},
		{"cost-table", func() { c.CostTable = cf.settings.CostTable }},
		{"namespace", func() { c.Namespace = cf.settings.Namespace }},
		{"package", func() { c.Package = cf.settings.Package }},
		{"target", func() { c.Target = cf.settings.Target }},
		{"leaf-format", func() { c.LeafFormat = cf.settings.LeafFormat }},
		{"feature-type", func() { c.FeatureType = cf.settings.FeatureType }},
		{"workers", func() { c.Workers = cf.settings.Workers }},
		{"continue-on-error", func() { c.ContinueOnError = cf.settings.ContinueOnError }},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			o.apply()
		}
	}
	if cf.featureTypeFrom != "" && c.FeatureType == "" {
		samples, err := dataset.ReadFromFilePath(cf.featureTypeFrom)
		if err != nil {
			return nil, fmt.Errorf("inferring feature type: %v", err)
		}
		c.FeatureType = dataset.FeatureType(samples)
		l.Logf("Inferred feature type %s from %d samples", c.FeatureType, len(samples))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
