// Package treetest provides random trees and forests for tests
package treetest

import (
	"math/rand"

	"github.com/AfafAlalwan/arch-forest/tree"
)

// Random takes a source of randomness, a number of splits and a number of
// features and returns a random tree with that many splits. Thresholds are
// multiples of 0.5 in [0, 10), predictions are integers in [0, 5) and the
// left routing probability is uniform in [0, 1).
func Random(r *rand.Rand, splits, features int) *tree.Tree {
	nodes := []*tree.Node{}
	next := tree.NodeID(1)
	var grow func(id tree.NodeID, budget int)
	grow = func(id tree.NodeID, budget int) {
		if budget == 0 {
			nodes = append(nodes, tree.NewLeaf(id, float64(r.Intn(5))))
			return
		}
		left, right := next, next+1
		next += 2
		lb := r.Intn(budget)
		pl := r.Float64()
		nodes = append(nodes, tree.NewSplit(id, r.Intn(features), float64(r.Intn(20))/2, left, right, pl, 1-pl))
		grow(left, lb)
		grow(right, budget-1-lb)
	}
	grow(0, splits)
	t, err := tree.New(0, nodes)
	if err != nil {
		panic(err)
	}
	return t
}

// Forest returns a forest of the given number of random trees with up to
// maxSplits splits each, over the given number of features and 5 classes.
func Forest(r *rand.Rand, trees, maxSplits, features int) *tree.Forest {
	ts := make([]*tree.Tree, 0, trees)
	for i := 0; i < trees; i++ {
		ts = append(ts, Random(r, r.Intn(maxSplits+1), features))
	}
	f, err := tree.NewForest(ts, features, tree.DefaultFeatureType, 5)
	if err != nil {
		panic(err)
	}
	return f
}

// Sample returns a random feature vector whose values are multiples of
// 0.5 around the thresholds of Random trees, so both sides of every
// split are exercised.
func Sample(r *rand.Rand, features int) []float64 {
	x := make([]float64, features)
	for i := range x {
		x[i] = float64(r.Intn(22))/2 - 0.5
	}
	return x
}
