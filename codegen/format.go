package codegen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LeafFormat decides how leaf predictions are written in generated code
type LeafFormat string

const (
	// Truncate writes predictions truncated towards zero to an integer,
	// which suits class labels and is lossy for regression trees.
	Truncate = LeafFormat("truncate")
	// Exact writes predictions as floating point literals
	Exact = LeafFormat("exact")
)

// ErrUnknownLeafFormat is returned when parsing an unknown leaf format
var ErrUnknownLeafFormat = errors.New("unknown leaf format")

// ParseLeafFormat takes the name of a leaf format and returns it, or an
// error if it is unknown. The empty string means Truncate.
func ParseLeafFormat(name string) (LeafFormat, error) {
	switch LeafFormat(name) {
	case "", Truncate:
		return Truncate, nil
	case Exact:
		return Exact, nil
	}
	return "", fmt.Errorf("%w %q (valid: %s, %s)", ErrUnknownLeafFormat, name, Truncate, Exact)
}

// Value takes a prediction and returns the value the generated code
// returns for it with this format.
func (lf LeafFormat) Value(prediction float64) float64 {
	if lf == Exact {
		return prediction
	}
	return float64(int64(prediction))
}

// Literal takes a prediction and returns its literal with this format
func (lf LeafFormat) Literal(prediction float64) string {
	if lf == Exact {
		return FloatLiteral(prediction)
	}
	return strconv.FormatInt(int64(prediction), 10)
}

// FloatLiteral returns the shortest literal that parses back to v,
// always with a decimal point or an exponent.
func FloatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Threshold takes a split threshold and whether the tree uses non-integral
// thresholds and returns the literal for it: an integer literal for trees
// with integral thresholds only and a floating point literal otherwise.
func Threshold(v float64, floatSplits bool) string {
	if floatSplits {
		return FloatLiteral(v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
