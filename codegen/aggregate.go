package codegen

import "math"

/*
Aggregate takes the predictions of every tree of a forest, the number of
classes and the leaf format and returns the prediction of the forest as
the generated ensemble function computes it:
  - with Truncate and at least one class, the class with most votes,
    the lowest class on ties; predictions outside the classes are ignored
  - otherwise the mean of the predictions, truncated towards zero with
    Truncate
*/
func Aggregate(predictions []float64, numClasses int, lf LeafFormat) float64 {
	if len(predictions) == 0 {
		return 0
	}
	if lf != Exact && numClasses > 0 {
		votes := make([]int, numClasses)
		for _, p := range predictions {
			c := int64(p)
			if c >= 0 && c < int64(numClasses) {
				votes[c]++
			}
		}
		best := 0
		for c := 1; c < numClasses; c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		return float64(best)
	}
	var sum float64
	for _, p := range predictions {
		sum += lf.Value(p)
	}
	mean := sum / float64(len(predictions))
	if lf == Exact {
		return mean
	}
	return math.Trunc(mean)
}
