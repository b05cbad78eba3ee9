// Package calltree builds a weighted call tree from the sample stream and
// offers read-only navigation over it: depth-bounded serialization, the hot
// path walk, caller/callee views and path-indexed child lookup.
//
// The raw tree retains pseudo frames for fidelity; every consumer folds them
// out by reporting a pseudo frame's children as if they belonged to its
// nearest real ancestor. That way a change of pseudo-frame policy never
// forces a rebuild.
package calltree

import (
	"github.com/tracelens/tracelens/internal/tracesource"
)

const RootName = "ROOT"

type (
	// Node is one frame in the call tree. Children are owned by their
	// parent; Parent is a back-reference used for caller lookup only.
	Node struct {
		Name            string  `json:"name"`
		InclusiveMetric float64 `json:"inclusive_metric"`
		ExclusiveMetric float64 `json:"exclusive_metric"`
		InclusiveCount  int64   `json:"inclusive_count"`
		Children        []*Node `json:"children,omitempty"`
		Parent          *Node   `json:"-"`
	}

	// Tree is a built call tree. The root represents all samples and its
	// inclusive metric is the percentage basis for every derived view.
	Tree struct {
		Root *Node
	}
)

// TotalMetric is the percentage basis: the metric total over every sample
// the tree was built from.
func (t *Tree) TotalMetric() float64 {
	if t == nil || t.Root == nil {
		return 0
	}
	return t.Root.InclusiveMetric
}

// Build inserts each sample's root-to-leaf path into the tree, accumulating
// the inclusive metric and count at every node on the path and the exclusive
// metric at the deepest node only.
func Build(src tracesource.Source, window *tracesource.TimeWindow) (*Tree, error) {
	root := &Node{Name: RootName}
	// Per-node child index, dropped once construction finishes.
	index := make(map[*Node]map[string]*Node)

	err := src.ForEachSample(window, func(s tracesource.StackSample) bool {
		root.InclusiveMetric += s.Metric
		root.InclusiveCount++
		cur := root
		for i := len(s.Frames) - 1; i >= 0; i-- {
			name := s.Frames[i]
			byName := index[cur]
			if byName == nil {
				byName = make(map[string]*Node, 4)
				index[cur] = byName
			}
			child := byName[name]
			if child == nil {
				child = &Node{Name: name, Parent: cur}
				cur.Children = append(cur.Children, child)
				byName[name] = child
			}
			child.InclusiveMetric += s.Metric
			child.InclusiveCount++
			cur = child
		}
		cur.ExclusiveMetric += s.Metric
		return true
	})
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root}, nil
}
