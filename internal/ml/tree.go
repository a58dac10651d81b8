package ml

type nodeKind uint8

const (
	leafNode nodeKind = iota
	splitNode
)

// node is either a leaf holding statistics or a binary split on one
// feature. A split node keeps the class distribution of the leaf it
// replaced so that predictions reaching a still-empty child can fall back
// on it.
type node struct {
	kind  nodeKind
	depth int

	// leaf
	stats    *leafStats
	terminal bool

	// split
	feature     string
	cut         float64
	dist        []float64
	left, right *node
}

func newLeaf(depth int) *node {
	return &node{kind: leafNode, depth: depth, stats: newLeafStats()}
}

func (n *node) isLeaf() bool { return n.kind == leafNode }

// next picks the child for fv. Missing features read as 0.
func (n *node) next(fv FeatureVector) *node {
	if fv[n.feature] <= n.cut {
		return n.left
	}
	return n.right
}

// route walks from root to the leaf fv falls into and returns the split
// nodes passed on the way, root first.
func route(root *node, fv FeatureVector) (*node, []*node) {
	var path []*node
	n := root
	for !n.isLeaf() {
		path = append(path, n)
		n = n.next(fv)
	}
	return n, path
}

// applySplit turns leaf into a split node with two empty children.
func applySplit(leaf *node, c SplitCandidate) {
	dist := make([]float64, len(leaf.stats.Counts))
	copy(dist, leaf.stats.Counts)

	leaf.kind = splitNode
	leaf.feature = c.Feature
	leaf.cut = c.Cut
	leaf.dist = dist
	leaf.stats = nil
	leaf.terminal = false
	leaf.left = newLeaf(leaf.depth + 1)
	leaf.right = newLeaf(leaf.depth + 1)
}

// walk visits every node depth first.
func walk(n *node, fn func(*node)) {
	if n == nil {
		return
	}
	fn(n)
	walk(n.left, fn)
	walk(n.right, fn)
}
