package calltree

import (
	"math"
	"sort"
	"strings"

	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
)

// MaxHotPathDepth bounds the hot path walk regardless of tree depth. The
// value is coupled to the serializer's maximum nesting depth downstream.
const MaxHotPathDepth = 30

// hotPathThreshold is the fraction of the parent's inclusive metric the top
// child must carry for the hot path to continue into it.
const hotPathThreshold = 0.8

type (
	// NodeDTO is the serializable projection of a folded node. ChildCount
	// always reflects the true folded child count, even when Children is
	// omitted by the depth cutoff.
	NodeDTO struct {
		Name             string     `json:"name"`
		InclusiveMetric  float64    `json:"inclusive_metric"`
		ExclusiveMetric  float64    `json:"exclusive_metric"`
		InclusivePercent float64    `json:"inclusive_percent"`
		ExclusivePercent float64    `json:"exclusive_percent"`
		InclusiveCount   int64      `json:"inclusive_count"`
		ChildCount       int        `json:"child_count"`
		Children         []*NodeDTO `json:"children,omitempty"`
	}

	HotPathStep struct {
		Name             string     `json:"name"`
		InclusiveMetric  float64    `json:"inclusive_metric"`
		ExclusiveMetric  float64    `json:"exclusive_metric"`
		InclusivePercent float64    `json:"inclusive_percent"`
		Children         []*NodeDTO `json:"children,omitempty"`
	}

	CallerCalleeEntry struct {
		Name             string  `json:"name"`
		InclusiveMetric  float64 `json:"inclusive_metric"`
		InclusivePercent float64 `json:"inclusive_percent"`
	}

	CallerCalleeResult struct {
		Focus   NodeDTO             `json:"focus"`
		Callers []CallerCalleeEntry `json:"callers"`
		Callees []CallerCalleeEntry `json:"callees"`
	}
)

// RealChildren returns the node's children with pseudo-frame children
// replaced in place by their own folded real children. The traversal is an
// explicit worklist so pathological pseudo-frame chains cannot blow the
// stack.
func RealChildren(n *Node) []*Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	queue := make([]*Node, len(n.Children))
	copy(queue, n.Children)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if frameutil.IsPseudoFrame(c.Name) {
			// A pseudo frame's children stand in for it, in place.
			expanded := make([]*Node, 0, len(c.Children)+len(queue))
			expanded = append(expanded, c.Children...)
			queue = append(expanded, queue...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// sortedRealChildren is the canonical child ordering shared by Serialize,
// NodeAtPath and the hot path walk: descending absolute inclusive metric.
func sortedRealChildren(n *Node) []*Node {
	children := RealChildren(n)
	sort.SliceStable(children, func(i, j int) bool {
		return math.Abs(children[i].InclusiveMetric) > math.Abs(children[j].InclusiveMetric)
	})
	return children
}

// Serialize emits the folded subtree rooted at n down to maxDepth levels of
// children. percentBasis is the denominator for all percentage figures.
func Serialize(n *Node, percentBasis float64, maxDepth int) *NodeDTO {
	return serialize(n, percentBasis, 0, maxDepth)
}

func serialize(n *Node, basis float64, depth, maxDepth int) *NodeDTO {
	children := sortedRealChildren(n)
	dto := &NodeDTO{
		Name:             n.Name,
		InclusiveMetric:  mathutil.Round2(n.InclusiveMetric),
		ExclusiveMetric:  mathutil.Round2(n.ExclusiveMetric),
		InclusivePercent: mathutil.Percent(n.InclusiveMetric, basis),
		ExclusivePercent: mathutil.Percent(n.ExclusiveMetric, basis),
		InclusiveCount:   n.InclusiveCount,
		ChildCount:       len(children),
	}
	if depth < maxDepth {
		for _, c := range children {
			dto.Children = append(dto.Children, serialize(c, basis, depth+1, maxDepth))
		}
	}
	return dto
}

// HotPath walks the dominant call chain starting at start: at each level all
// folded children are reported, and the walk continues into the heaviest
// child only while it carries at least 80% of its parent's inclusive metric.
// The walk never exceeds MaxHotPathDepth levels.
func HotPath(start *Node, percentBasis float64) []HotPathStep {
	if start == nil {
		return nil
	}
	steps := make([]HotPathStep, 0, 8)
	cur := start
	for depth := 0; depth < MaxHotPathDepth; depth++ {
		children := sortedRealChildren(cur)
		step := HotPathStep{
			Name:             cur.Name,
			InclusiveMetric:  mathutil.Round2(cur.InclusiveMetric),
			ExclusiveMetric:  mathutil.Round2(cur.ExclusiveMetric),
			InclusivePercent: mathutil.Percent(cur.InclusiveMetric, percentBasis),
		}
		for _, c := range children {
			step.Children = append(step.Children, serialize(c, percentBasis, 0, 0))
		}
		steps = append(steps, step)

		if len(children) == 0 {
			break
		}
		parentAbs := math.Abs(cur.InclusiveMetric)
		if parentAbs == 0 {
			break
		}
		top := children[0]
		if math.Abs(top.InclusiveMetric) < hotPathThreshold*parentAbs {
			break
		}
		cur = top
	}
	return steps
}

// NodeAtPath resolves a sequence of child indexes against the canonical
// sorted folded child ordering. Any out-of-range index yields nil rather
// than an error, so interactive navigation degrades to an empty result.
func NodeAtPath(root *Node, path []int) *Node {
	cur := root
	for _, idx := range path {
		children := sortedRealChildren(cur)
		if idx < 0 || idx >= len(children) {
			return nil
		}
		cur = children[idx]
	}
	return cur
}

// CallerCallee aggregates the callers and callees of every node matching the
// queried method name. An exact-name match is attempted first; when it
// carries no data, the heaviest node whose name contains the query
// case-insensitively is used instead. No match at all yields a zero-valued
// focus, not an error.
func CallerCallee(t *Tree, query string) CallerCalleeResult {
	basis := t.TotalMetric()
	focus := collectByName(t, query)
	if emptyFocus(focus) {
		if name, ok := fuzzyMatch(t, query); ok {
			focus = collectByName(t, name)
			query = name
		}
	}

	res := CallerCalleeResult{
		Focus:   NodeDTO{Name: query},
		Callers: []CallerCalleeEntry{},
		Callees: []CallerCalleeEntry{},
	}
	if len(focus) == 0 {
		return res
	}

	callers := make(map[string]float64)
	callees := make(map[string]float64)
	var incl, excl float64
	var count int64
	for _, n := range focus {
		incl += n.InclusiveMetric
		excl += n.ExclusiveMetric
		count += n.InclusiveCount
		if caller := realAncestor(n); caller != nil {
			callers[caller.Name] += n.InclusiveMetric
		}
		for _, c := range RealChildren(n) {
			callees[c.Name] += c.InclusiveMetric
		}
	}
	res.Focus = NodeDTO{
		Name:             query,
		InclusiveMetric:  mathutil.Round2(incl),
		ExclusiveMetric:  mathutil.Round2(excl),
		InclusivePercent: mathutil.Percent(incl, basis),
		ExclusivePercent: mathutil.Percent(excl, basis),
		InclusiveCount:   count,
	}
	res.Callers = toEntries(callers, basis)
	res.Callees = toEntries(callees, basis)
	return res
}

// collectByName returns every real node with the exact folded name.
func collectByName(t *Tree, name string) []*Node {
	var out []*Node
	walk(t.Root, func(n *Node) {
		if n.Name == name && !frameutil.IsPseudoFrame(n.Name) && n != t.Root {
			out = append(out, n)
		}
	})
	return out
}

// fuzzyMatch finds the real frame with the largest absolute inclusive metric
// whose name contains the query as a case-insensitive substring.
func fuzzyMatch(t *Tree, query string) (string, bool) {
	lower := strings.ToLower(query)
	var best *Node
	walk(t.Root, func(n *Node) {
		if n == t.Root || frameutil.IsPseudoFrame(n.Name) {
			return
		}
		if !strings.Contains(strings.ToLower(n.Name), lower) {
			return
		}
		if best == nil || math.Abs(n.InclusiveMetric) > math.Abs(best.InclusiveMetric) {
			best = n
		}
	})
	if best == nil {
		return "", false
	}
	return best.Name, true
}

// emptyFocus reports whether an exact match carried no data at all: no
// metric, no callers, no callees. Such a match triggers the fuzzy fallback.
func emptyFocus(nodes []*Node) bool {
	if len(nodes) == 0 {
		return true
	}
	for _, n := range nodes {
		if n.InclusiveMetric != 0 || n.ExclusiveMetric != 0 {
			return false
		}
		if realAncestor(n) != nil || len(RealChildren(n)) > 0 {
			return false
		}
	}
	return true
}

// realAncestor walks the parent chain to the nearest real frame, skipping
// pseudo frames. The tree root does not count as a caller.
func realAncestor(n *Node) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Parent == nil {
			// p is the root.
			return nil
		}
		if !frameutil.IsPseudoFrame(p.Name) {
			return p
		}
	}
	return nil
}

func walk(root *Node, visit func(*Node)) {
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

func toEntries(byName map[string]float64, basis float64) []CallerCalleeEntry {
	entries := make([]CallerCalleeEntry, 0, len(byName))
	for name, metric := range byName {
		entries = append(entries, CallerCalleeEntry{
			Name:             name,
			InclusiveMetric:  mathutil.Round2(metric),
			InclusivePercent: mathutil.Percent(metric, basis),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := math.Abs(entries[i].InclusiveMetric), math.Abs(entries[j].InclusiveMetric)
		if a == b {
			return entries[i].Name < entries[j].Name
		}
		return a > b
	})
	return entries
}
