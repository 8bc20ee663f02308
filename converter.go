package archforest

import (
	"fmt"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/kernel"
	"github.com/AfafAlalwan/arch-forest/tree"
)

/*
Converter lays out the branches of a tree. Its variants are closed:
converters can only be obtained from NewBaseline and NewOptimized.
*/
type Converter interface {
	// Emit takes a tree and its index in the forest and returns
	// its layout, or an error if the tree cannot be laid out.
	// It is safe to call Emit concurrently.
	Emit(t *tree.Tree, id int) (*codegen.Body, error)
	// Name returns a short description of the converter
	Name() string
	converter()
}

type baseline struct{}

// NewBaseline returns a Converter laying out trees as plain nested
// if/else statements, ignoring costs and probabilities.
func NewBaseline() Converter {
	return baseline{}
}

func (baseline) Emit(t *tree.Tree, id int) (*codegen.Body, error) {
	return codegen.Baseline(t, id)
}

func (baseline) Name() string {
	return "baseline"
}

func (baseline) converter() {}

type optimized struct {
	model       *cost.Model
	budget      cost.Units
	algorithm   kernel.Algorithm
	partitioner kernel.Partitioner
}

// optimizedConfig collects the settings of an optimized converter
type optimizedConfig struct {
	table     *cost.Table
	algorithm kernel.Algorithm
	kernel    []kernel.Option
}

// Option sets up an optimized converter
type Option func(*optimizedConfig) error

// WithCostTable replaces the built-in calibration table
func WithCostTable(t *cost.Table) Option {
	return func(c *optimizedConfig) error {
		if t == nil {
			return NewConfigError("CostTable", nil, "cost table cannot be nil", nil)
		}
		c.table = t
		return nil
	}
}

// WithAlgorithm sets the partitioning algorithm, kernel.PathAlgorithm by default
func WithAlgorithm(alg kernel.Algorithm) Option {
	return func(c *optimizedConfig) error {
		a, err := kernel.ParseAlgorithm(string(alg))
		if err != nil {
			return NewConfigError("Algorithm", alg, "", err)
		}
		c.algorithm = a
		return nil
	}
}

// WithMaxPaths sets the maximum number of root to leaf paths the
// path algorithm enumerates for a tree before rejecting it.
func WithMaxPaths(max int) Option {
	return func(c *optimizedConfig) error {
		if max <= 0 {
			return NewConfigError("MaxPaths", max, "must be positive", nil)
		}
		c.kernel = append(c.kernel, kernel.WithMaxPaths(max))
		return nil
	}
}

// WithPathOrder sets the order in which the path algorithm walks paths
func WithPathOrder(o kernel.Order) Option {
	return func(c *optimizedConfig) error {
		if o == nil {
			return NewConfigError("PathOrder", nil, "order cannot be nil", nil)
		}
		c.kernel = append(c.kernel, kernel.WithOrder(o))
		return nil
	}
}

/*
NewOptimized takes a target architecture, a kernel budget in cost units
and options and returns a Converter that keeps the nodes most likely to
be reached within the budget laid out inline and moves the rest into
labeled blocks reached through jumps.

It returns a *ConfigError if the architecture is not in the cost table,
the budget is not positive or an option is invalid.
*/
func NewOptimized(arch cost.Architecture, budget cost.Units, opts ...Option) (Converter, error) {
	c := &optimizedConfig{algorithm: kernel.PathAlgorithm}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	m, err := cost.New(arch, c.table)
	if err != nil {
		return nil, NewConfigError("Architecture", arch, "", err)
	}
	p, err := kernel.New(c.algorithm, m, budget, c.kernel...)
	if err != nil {
		return nil, NewConfigError("Budget", budget, "", err)
	}
	return &optimized{model: m, budget: budget, algorithm: c.algorithm, partitioner: p}, nil
}

func (o *optimized) Emit(t *tree.Tree, id int) (*codegen.Body, error) {
	p, err := o.partitioner.Partition(t)
	if err != nil {
		return nil, err
	}
	return codegen.Emit(t, id, p, o.model)
}

func (o *optimized) Name() string {
	return fmt.Sprintf("optimized (%s, budget %d, %s)", o.model.Architecture(), o.budget, o.algorithm)
}

func (*optimized) converter() {}
