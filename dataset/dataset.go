/*
Package dataset reads labeled samples used to check generated code
against the trees it was generated from, and infers the narrowest C
element type able to hold their feature values.
*/
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Sample is a labeled feature vector
type Sample struct {
	Label    float64
	Features []float64
}

// Dataset is a source of samples that can be read sequentially
type Dataset interface {
	// Read sends every sample of the dataset on the returned sample
	// channel and then closes both channels. If reading fails, the
	// error is sent on the error channel before closing.
	Read(ctx context.Context) (<-chan *Sample, <-chan error)
	// Dim returns the number of features of the samples in the dataset,
	// or 0 if it is not known before reading them.
	Dim() int
}

type memDataset struct {
	samples []*Sample
}

// New returns a Dataset backed by the given samples
func New(samples []*Sample) Dataset {
	return &memDataset{samples: samples}
}

func (md *memDataset) Dim() int {
	if len(md.samples) == 0 {
		return 0
	}
	return len(md.samples[0].Features)
}

func (md *memDataset) Read(ctx context.Context) (<-chan *Sample, <-chan error) {
	samples := make(chan *Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(samples)
		defer close(errs)
		for _, s := range md.samples {
			if err := ctx.Err(); err != nil {
				errs <- err
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case samples <- s:
			}
		}
	}()
	return samples, errs
}

// Samples takes a context and a dataset and returns all its samples
func Samples(ctx context.Context, ds Dataset) ([]*Sample, error) {
	var result []*Sample
	samples, errs := ds.Read(ctx)
	for s := range samples {
		result = append(result, s)
	}
	return result, <-errs
}

/*
ReadBySample takes an io.Reader for a CSV stream and a lambda function on
an integer and a *Sample that returns a boolean value. It parses the
samples from the reader and for each it calls the lambda function with the
sample and its index as parameters. If the lambda function returns true, it
will continue processing the next sample, otherwise it will stop. An error
is returned if something goes wrong when reading or parsing a sample.

Every row holds the label in its first column and the feature values in the
rest, and all rows must have the same number of columns. A first row that
does not parse as numbers is taken as a header and skipped.
*/
func ReadBySample(reader io.Reader, lambda func(int, *Sample) (bool, error)) error {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	index := 0
	for l := 1; ; l++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line %d: %v", l, err)
		}
		if len(row) < 2 {
			return fmt.Errorf("parsing line %d: expected a label and at least one feature, got %d columns", l, len(row))
		}
		s, err := parseRow(row)
		if err != nil {
			if l == 1 {
				continue
			}
			return fmt.Errorf("parsing line %d: %v", l, err)
		}
		ok, err := lambda(index, s)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		index++
	}
	return nil
}

// Read takes an io.Reader for a CSV stream and returns the
// samples parsed from it with ReadBySample.
func Read(reader io.Reader) ([]*Sample, error) {
	samples := []*Sample{}
	err := ReadBySample(reader, func(_ int, s *Sample) (bool, error) {
		samples = append(samples, s)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// ReadFromFilePath takes a filepath, opens the file it points to and
// returns the samples read from it with Read. An empty filepath means
// the standard input.
func ReadFromFilePath(filepath string) ([]*Sample, error) {
	var f *os.File
	var err error
	if filepath == "" {
		f = os.Stdin
	} else {
		f, err = os.Open(filepath)
		if err != nil {
			return nil, fmt.Errorf("reading samples: %v", err)
		}
		defer f.Close()
	}
	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV file %s: %v", filepath, err)
	}
	return samples, nil
}

func parseRow(row []string) (*Sample, error) {
	values := make([]float64, len(row))
	for i, v := range row {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: converting %q to float64: %v", i+1, v, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("column %d: non-finite value %q", i+1, v)
		}
		values[i] = f
	}
	return &Sample{Label: values[0], Features: values[1:]}, nil
}

/*
FeatureType takes samples and returns the narrowest C element type able to
hold their feature values: "float" if any value is non-integral and
otherwise the smallest of char, short and int, unsigned when no value is
negative. It returns "float" for no samples.
*/
func FeatureType(samples []*Sample) string {
	if len(samples) == 0 {
		return "float"
	}
	lower, upper := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		for _, v := range s.Features {
			if v != math.Trunc(v) {
				return "float"
			}
			lower = math.Min(lower, v)
			upper = math.Max(upper, v)
		}
	}
	if math.IsInf(lower, 0) {
		return "float"
	}
	prefix, max, bits := "unsigned", upper, 0
	if lower < 0 {
		prefix, max, bits = "signed", math.Max(-lower, upper), 1
	}
	if max > 0 {
		bits += int(math.Log2(max)) + 1
	} else {
		bits++
	}
	switch {
	case bits <= 8:
		return prefix + " char"
	case bits <= 16 && prefix == "unsigned":
		return "unsigned short"
	case bits <= 16:
		return "short"
	case bits <= 32 && prefix == "unsigned":
		return "unsigned int"
	case bits <= 32:
		return "int"
	}
	return "float"
}
