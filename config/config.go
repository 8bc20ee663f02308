/*
Package config holds the settings of a forest conversion and builds the
converter and the target they describe.

Settings come in three layers, each overriding the previous one: the
defaults returned by Default, a YAML document read with Read or
ReadFromFile and the command line flags the CLI sets on the result.
*/
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"runtime"

	yaml "gopkg.in/yaml.v2"

	archforest "github.com/AfafAlalwan/arch-forest"
	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/kernel"
	"github.com/AfafAlalwan/arch-forest/target/cpp"
	"github.com/AfafAlalwan/arch-forest/target/golang"
)

// Targets source code can be generated for
const (
	CPP = "cpp"
	Go  = "go"
)

// Path orders
const (
	ProbabilityOrder   = "probability"
	LexicographicOrder = "lexicographic"
)

// Config describes a forest conversion
type Config struct {
	Arch       string `yaml:"arch"`
	Budget     int    `yaml:"budget"`
	Baseline   bool   `yaml:"baseline"`
	Algorithm  string `yaml:"algorithm"`
	PathOrder  string `yaml:"pathOrder"`
	MaxPaths   int    `yaml:"maxPaths"`
	CostTable  string `yaml:"costTable,omitempty"`
	Namespace  string `yaml:"namespace"`
	Package    string `yaml:"package,omitempty"`
	Target     string `yaml:"target"`
	LeafFormat string `yaml:"leafFormat"`
	// FeatureType overrides the C element type of the input
	// stored with the forest when not empty
	FeatureType     string `yaml:"featureType,omitempty"`
	Workers         int    `yaml:"workers"`
	ContinueOnError bool   `yaml:"continueOnError"`
}

// Default returns the built-in settings: optimized conversion for ARM
// with a budget of 32000 bytes using the path algorithm, generating C
// code with truncated leaves under the "forest" namespace.
func Default() *Config {
	return &Config{
		Arch:       string(cost.ARM),
		Budget:     32000,
		Algorithm:  string(kernel.PathAlgorithm),
		PathOrder:  ProbabilityOrder,
		MaxPaths:   kernel.DefaultMaxPaths,
		Namespace:  "forest",
		Target:     CPP,
		LeafFormat: string(codegen.Truncate),
		Workers:    runtime.NumCPU(),
	}
}

/*
Read takes a slice of bytes with a YAML document and returns the default
settings overridden by the ones in the document, or an error if the
document cannot be parsed or holds unknown keys.
*/
func Read(data []byte) (*Config, error) {
	c := Default()
	err := yaml.UnmarshalStrict(data, c)
	if err != nil {
		return nil, fmt.Errorf("parsing yml config: %v", err)
	}
	return c, nil
}

// ReadFromFile takes a filepath, reads its contents and returns the
// settings parsed from it with Read.
func ReadFromFile(filepath string) (*Config, error) {
	data, err := ioutil.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading config yml file %s: %v", filepath, err)
	}
	c, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config yml file %s: %v", filepath, err)
	}
	return c, nil
}

// Marshal returns the settings as a YAML document
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

/*
Validate checks the settings and returns a *archforest.ConfigError
describing the first invalid one, or nil if all are valid. It does not
read the cost table.
*/
func (c *Config) Validate() error {
	if !c.Baseline {
		if _, err := cost.New(cost.Architecture(c.Arch), nil); err != nil && c.CostTable == "" {
			return archforest.NewConfigError("arch", c.Arch, "", err)
		}
		if c.Budget <= 0 {
			return archforest.NewConfigError("budget", c.Budget, "", kernel.ErrInvalidBudget)
		}
		if _, err := kernel.ParseAlgorithm(c.Algorithm); err != nil {
			return archforest.NewConfigError("algorithm", c.Algorithm, "", err)
		}
		if _, err := c.order(); err != nil {
			return err
		}
		if c.MaxPaths <= 0 {
			return archforest.NewConfigError("maxPaths", c.MaxPaths, "must be positive", nil)
		}
	}
	if _, err := codegen.ParseLeafFormat(c.LeafFormat); err != nil {
		return archforest.NewConfigError("leafFormat", c.LeafFormat, "", err)
	}
	if c.Target != CPP && c.Target != Go {
		return archforest.NewConfigError("target", c.Target, fmt.Sprintf("must be %s or %s", CPP, Go), nil)
	}
	if c.Namespace == "" {
		return archforest.NewConfigError("namespace", c.Namespace, "cannot be empty", nil)
	}
	if c.Workers <= 0 {
		return archforest.NewConfigError("workers", c.Workers, "must be positive", nil)
	}
	return nil
}

/*
Converter returns the converter described by the settings, reading the
cost table file if one is set. It returns a *archforest.ConfigError if
the settings are invalid.
*/
func (c *Config) Converter() (archforest.Converter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Baseline {
		return archforest.NewBaseline(), nil
	}
	order, err := c.order()
	if err != nil {
		return nil, err
	}
	opts := []archforest.Option{
		archforest.WithAlgorithm(kernel.Algorithm(c.Algorithm)),
		archforest.WithPathOrder(order),
		archforest.WithMaxPaths(c.MaxPaths),
	}
	if c.CostTable != "" {
		t, err := cost.ReadTableFromFile(c.CostTable)
		if err != nil {
			return nil, archforest.NewConfigError("costTable", c.CostTable, "", err)
		}
		opts = append(opts, archforest.WithCostTable(t))
	}
	return archforest.NewOptimized(cost.Architecture(c.Arch), cost.Units(c.Budget), opts...)
}

/*
Renderer takes the input dimensionality and C element type of a forest and
returns the renderer for the target language of the settings. A non-empty
FeatureType setting replaces the given element type.
*/
func (c *Config) Renderer(dim int, featureType string) (archforest.Target, error) {
	if c.FeatureType != "" {
		featureType = c.FeatureType
	}
	lf, err := codegen.ParseLeafFormat(c.LeafFormat)
	if err != nil {
		return nil, archforest.NewConfigError("leafFormat", c.LeafFormat, "", err)
	}
	var t archforest.Target
	switch c.Target {
	case CPP:
		t, err = cpp.New(c.Namespace, dim, featureType, lf)
	case Go:
		t, err = golang.New(c.Package, c.Namespace, dim, featureType, lf)
	default:
		return nil, archforest.NewConfigError("target", c.Target, fmt.Sprintf("must be %s or %s", CPP, Go), nil)
	}
	if err != nil {
		return nil, archforest.NewConfigError("target", c.Target, "", err)
	}
	return t, nil
}

// ConvertOptions returns the forest conversion options of the settings
func (c *Config) ConvertOptions(l archforest.Logger) []archforest.ConvertOption {
	opts := []archforest.ConvertOption{archforest.Workers(c.Workers), archforest.WithLogger(l)}
	if c.ContinueOnError {
		opts = append(opts, archforest.ContinueOnError())
	}
	return opts
}

func (c *Config) order() (kernel.Order, error) {
	switch c.PathOrder {
	case ProbabilityOrder, "":
		return kernel.Probability, nil
	case LexicographicOrder:
		return kernel.Lexicographic, nil
	}
	return nil, archforest.NewConfigError("pathOrder", c.PathOrder, "", errUnknownOrder)
}

var errUnknownOrder = errors.New("unknown path order, must be probability or lexicographic")
