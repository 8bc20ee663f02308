/*
Package verify checks that tree layouts make the same decisions as the
trees they were built from, by evaluating both on labeled samples or on
random feature vectors drawn around the split thresholds.
*/
package verify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/AfafAlalwan/arch-forest/codegen"
	"github.com/AfafAlalwan/arch-forest/dataset"
	"github.com/AfafAlalwan/arch-forest/tree"
)

// Mismatch is a sample for which a layout and its tree disagree
type Mismatch struct {
	Tree     int
	Features []float64
	Want     float64
	Got      float64
}

func (m *Mismatch) String() string {
	return fmt.Sprintf("tree %d: %v: tree predicts %v, layout returns %v", m.Tree, m.Features, m.Want, m.Got)
}

// Report summarizes a verification
type Report struct {
	Samples int
	// Mismatches is the number of tree evaluations where
	// the layout and the tree disagree
	Mismatches    int
	FirstMismatch *Mismatch
	// Correct is the number of samples whose label matches
	// the prediction of the forest
	Correct int
}

// Accuracy returns the fraction of samples whose label matches the
// prediction of the forest
func (r *Report) Accuracy() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Samples)
}

// OK returns whether every layout agreed with its tree on every sample
func (r *Report) OK() bool {
	return r.Mismatches == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%d samples, %d mismatches, accuracy %.4f", r.Samples, r.Mismatches, r.Accuracy())
}

/*
Check takes a context, a forest, the layouts of its trees, a dataset and
the leaf format of the generated code and evaluates every layout and its
tree on every sample of the dataset. The prediction of the forest is
aggregated from the layouts as the generated ensemble function does and
compared to the label of the sample.

It returns an error if a layout refers to a tree missing from the
forest, a sample has fewer features than the forest needs or reading
the dataset fails.
*/
func Check(ctx context.Context, f *tree.Forest, bodies []*codegen.Body, ds dataset.Dataset, lf codegen.LeafFormat) (*Report, error) {
	for _, b := range bodies {
		if b.Tree < 0 || b.Tree >= len(f.Trees) {
			return nil, fmt.Errorf("layout for tree %d of a forest of %d trees", b.Tree, len(f.Trees))
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	report := &Report{}
	samples, errs := ds.Read(ctx)
	predictions := make([]float64, len(bodies))
	for s := range samples {
		if len(s.Features) < f.Dim {
			return nil, fmt.Errorf("sample %d has %d features, forest needs %d", report.Samples, len(s.Features), f.Dim)
		}
		for i, b := range bodies {
			want, err := f.Trees[b.Tree].Predict(s.Features)
			if err != nil {
				return nil, err
			}
			got, err := codegen.Eval(b, s.Features)
			if err != nil {
				return nil, err
			}
			if want != got {
				report.Mismatches++
				if report.FirstMismatch == nil {
					report.FirstMismatch = &Mismatch{Tree: b.Tree, Features: s.Features, Want: want, Got: got}
				}
			}
			predictions[i] = got
		}
		if codegen.Aggregate(predictions, f.NumClasses, lf) == lf.Value(s.Label) {
			report.Correct++
		}
		report.Samples++
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	return report, nil
}

/*
Random takes a seed, a forest and a number of samples and returns a
dataset of that many unlabeled feature vectors. Each value is either a
split threshold of the forest for that feature, a value right below or
above one, or a value drawn uniformly from the range of thresholds,
so both branches of every split get exercised. The same seed always
gives the same vectors.
*/
func Random(seed int64, f *tree.Forest, n int) dataset.Dataset {
	r := rand.New(rand.NewSource(seed))
	thresholds := make([][]float64, f.Dim)
	for _, t := range f.Trees {
		t.Traverse(false, func(node *tree.Node) error {
			if !node.IsLeaf() {
				thresholds[node.Feature()] = append(thresholds[node.Feature()], node.Threshold())
			}
			return nil
		})
	}
	for _, ths := range thresholds {
		sort.Float64s(ths)
	}
	samples := make([]*dataset.Sample, 0, n)
	for i := 0; i < n; i++ {
		x := make([]float64, f.Dim)
		for j, ths := range thresholds {
			x[j] = value(r, ths)
		}
		samples = append(samples, &dataset.Sample{Label: math.NaN(), Features: x})
	}
	return dataset.New(samples)
}

func value(r *rand.Rand, ths []float64) float64 {
	if len(ths) == 0 {
		return r.NormFloat64()
	}
	th := ths[r.Intn(len(ths))]
	switch r.Intn(4) {
	case 0:
		return th
	case 1:
		return math.Nextafter(th, math.Inf(-1))
	case 2:
		return math.Nextafter(th, math.Inf(1))
	}
	lo, hi := ths[0]-1, ths[len(ths)-1]+1
	return lo + r.Float64()*(hi-lo)
}
