/*
Package inputsample reads feature vectors from an io.Reader one value per
line, asking for each value before reading it, to predict with a forest
from a terminal.
*/
package inputsample

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/AfafAlalwan/arch-forest/dataset"
)

/*
FeatureValueRequester represents a way to ask
for feature values and reject the given values.
*/
type FeatureValueRequester interface {
	RequestValueFor(feature int) error
	RejectValueFor(feature int, value string) error
}

// Reader reads samples from an io.Reader
type Reader struct {
	scanner   *bufio.Scanner
	requester FeatureValueRequester
	dim       int
}

/*
New takes an io.Reader, the number of features of a sample and a
FeatureValueRequester and returns a Reader of samples with that many
features.

Every value is requested with the FeatureValueRequester and then lines
are read until one holds a finite number. Lines that do not are rejected
with the FeatureValueRequester's RejectValueFor method.
*/
func New(r io.Reader, dim int, requester FeatureValueRequester) *Reader {
	return &Reader{bufio.NewScanner(r), requester, dim}
}

// Read returns the next sample, with a zero label, or io.EOF if the
// reader ends before its first value.
func (r *Reader) Read() (*dataset.Sample, error) {
	s := &dataset.Sample{Features: make([]float64, r.dim)}
	for i := range s.Features {
		v, err := r.readValue(i)
		if err == io.EOF && i > 0 {
			return nil, fmt.Errorf("reading feature %d: unexpected EOF", i)
		}
		if err != nil {
			return nil, err
		}
		s.Features[i] = v
	}
	return s, nil
}

func (r *Reader) readValue(feature int) (float64, error) {
	err := r.requester.RequestValueFor(feature)
	if err != nil {
		return 0, err
	}
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		value, err := strconv.ParseFloat(line, 64)
		if err == nil && !math.IsNaN(value) && !math.IsInf(value, 0) {
			return value, nil
		}
		err = r.requester.RejectValueFor(feature, line)
		if err != nil {
			return 0, err
		}
	}
	if err = r.scanner.Err(); err != nil {
		return 0, err
	}
	return 0, io.EOF
}
