package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIncompatibleSnapshot is returned when a snapshot cannot be restored.
var ErrIncompatibleSnapshot = errors.New("incompatible model snapshot")

const snapshotVersion = 1

type snapshot struct {
	Version  int           `json:"version"`
	Config   Config        `json:"config"`
	Labels   []string      `json:"labels"`
	Examples int64         `json:"examples"`
	Root     *nodeSnapshot `json:"root"`
}

type nodeSnapshot struct {
	Depth    int        `json:"depth"`
	Leaf     *leafStats `json:"leaf,omitempty"`
	Terminal bool       `json:"terminal,omitempty"`

	Feature string        `json:"feature,omitempty"`
	Cut     float64       `json:"cut,omitempty"`
	Dist    []float64     `json:"dist,omitempty"`
	Left    *nodeSnapshot `json:"left,omitempty"`
	Right   *nodeSnapshot `json:"right,omitempty"`
}

// Snapshot serializes the whole model to JSON.
func (c *Classifier) Snapshot() ([]byte, error) {
	s := snapshot{
		Version:  snapshotVersion,
		Config:   c.cfg,
		Labels:   c.labels,
		Examples: c.seen,
		Root:     encodeNode(c.root),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func encodeNode(n *node) *nodeSnapshot {
	if n.isLeaf() {
		return &nodeSnapshot{Depth: n.depth, Leaf: n.stats, Terminal: n.terminal}
	}
	return &nodeSnapshot{
		Depth:   n.depth,
		Feature: n.feature,
		Cut:     n.cut,
		Dist:    n.dist,
		Left:    encodeNode(n.left),
		Right:   encodeNode(n.right),
	}
}

// Restore rebuilds a classifier from Snapshot output.
func Restore(data []byte, metrics MetricsInterface) (*Classifier, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleSnapshot, err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrIncompatibleSnapshot, s.Version, snapshotVersion)
	}
	if err := s.Config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleSnapshot, err)
	}
	if s.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrIncompatibleSnapshot)
	}

	c := &Classifier{
		cfg:     s.Config,
		index:   make(map[string]int, len(s.Labels)),
		seen:    s.Examples,
		metrics: metrics,
	}
	for _, l := range s.Labels {
		if _, dup := c.index[l]; dup || l == "" {
			return nil, fmt.Errorf("%w: bad label %q", ErrIncompatibleSnapshot, l)
		}
		c.classIndex(l)
	}

	root, err := c.decodeNode(s.Root, 0)
	if err != nil {
		return nil, err
	}
	c.root = root
	walk(root, func(n *node) {
		if n.isLeaf() {
			c.leaves++
			if n.depth > c.depth {
				c.depth = n.depth
			}
		} else {
			c.splits++
		}
	})
	c.reportShape()
	return c, nil
}

func (c *Classifier) decodeNode(s *nodeSnapshot, depth int) (*node, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: missing node at depth %d", ErrIncompatibleSnapshot, depth)
	}
	if s.Depth != depth {
		return nil, fmt.Errorf("%w: node depth %d at level %d", ErrIncompatibleSnapshot, s.Depth, depth)
	}

	if s.Leaf != nil {
		if len(s.Leaf.Counts) > len(c.labels) {
			return nil, fmt.Errorf("%w: leaf has %d classes, vocabulary %d", ErrIncompatibleSnapshot, len(s.Leaf.Counts), len(c.labels))
		}
		if s.Leaf.Features == nil {
			s.Leaf.Features = make(map[string][]*classObserver)
		}
		return &node{kind: leafNode, depth: depth, stats: s.Leaf, terminal: s.Terminal}, nil
	}

	if s.Feature == "" || len(s.Dist) > len(c.labels) {
		return nil, fmt.Errorf("%w: malformed split at depth %d", ErrIncompatibleSnapshot, depth)
	}
	left, err := c.decodeNode(s.Left, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := c.decodeNode(s.Right, depth+1)
	if err != nil {
		return nil, err
	}
	return &node{
		kind:    splitNode,
		depth:   depth,
		feature: s.Feature,
		cut:     s.Cut,
		dist:    s.Dist,
		left:    left,
		right:   right,
	}, nil
}
