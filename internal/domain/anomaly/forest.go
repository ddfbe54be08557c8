package anomaly

import (
	"math"
	"math/rand"
)

// treeNode is one node of an isolation tree. Exported fields keep the
// node serializable by the versioned model format.
type treeNode struct {
	SplitAttr int       `json:"a,omitempty"`
	SplitVal  float64   `json:"v,omitempty"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Size      int       `json:"n"` // leaf population; 0 for internal nodes
	leaf      bool
}

func (n *treeNode) isLeaf() bool { return n.leaf || (n.Left == nil && n.Right == nil) }

// buildTree grows an isolation tree over sample up to maxDepth, choosing
// a uniformly random attribute and a uniform split point within the
// attribute's observed range at every internal node.
func buildTree(rng *rand.Rand, sample [][]float64, depth, maxDepth int) *treeNode {
	if len(sample) <= 1 || depth >= maxDepth {
		return &treeNode{Size: len(sample), leaf: true}
	}

	dims := len(sample[0])
	// Try a few attributes before giving up on a constant region.
	for attempt := 0; attempt < dims; attempt++ {
		attr := rng.Intn(dims)
		lo, hi := sample[0][attr], sample[0][attr]
		for _, row := range sample {
			if row[attr] < lo {
				lo = row[attr]
			}
			if row[attr] > hi {
				hi = row[attr]
			}
		}
		if hi == lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, row := range sample {
			if row[attr] < split {
				left = append(left, row)
			} else {
				right = append(right, row)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		return &treeNode{
			SplitAttr: attr,
			SplitVal:  split,
			Left:      buildTree(rng, left, depth+1, maxDepth),
			Right:     buildTree(rng, right, depth+1, maxDepth),
		}
	}
	// Every attribute is constant across the sample.
	return &treeNode{Size: len(sample), leaf: true}
}

// pathLength walks x down the tree, adding the average-path adjustment
// for the terminating leaf population.
func pathLength(n *treeNode, x []float64) float64 {
	depth := 0.0
	for !n.isLeaf() {
		if x[n.SplitAttr] < n.SplitVal {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return depth + avgPathLength(n.Size)
}

// avgPathLength is c(n), the average unsuccessful-search path length of
// a binary search tree over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
}

const eulerMascheroni = 0.5772156649
