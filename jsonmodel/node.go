package jsonmodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// LeafSpec is one declared JSON leaf path, e.g. {"path": ["user","age"],
// "types": [Int]}. A path of length 0 names the document root itself (rare
// but legal for a scalar document). Range bounds the categorical/int
// outcome count for Categorical/Int leaves (the enum dictionary's
// cardinality); it is ignored for Real/String/TimeSeries leaves.
type LeafSpec struct {
	Path  []string
	Types []schema.AttrType
	Range int
	IntMin int32
	BinSize float64
}

// Kind distinguishes the three mirror-tree node shapes (§4.11).
type Kind int

const (
	KindObjectNode Kind = iota
	KindArrayNode
	KindLeafNode
)

// Node is one mirror-schema tree node. Object nodes hold named children in
// member-name order (Build sorts them; no later step reorders them); array nodes hold a single element template (unless
// the path is declared time-series, in which case the whole array is a
// single leaf fed directly to a time-series sub-model); leaf nodes hold a
// value sub-model.
type Node struct {
	Kind Kind
	Name string // member name within the parent object; "" for array/root

	LeafID   int // valid (>=0) only for KindLeafNode
	LeafType schema.AttrType
	Range    int     // categorical/int outcome count, leaf nodes only
	IntMin   int32   // int leaf's minimum observed value, for zero-based coding
	BinSize  float64 // real/time-series leaf's quantization bin size

	TimeSeries bool // true if this leaf path is typed TimeSeries

	Types []schema.AttrType // permissible types at this path; >1 needs a type sub-model

	Members  []string         // sorted by name, object nodes only
	Children map[string]*Node // object nodes only
	Element  *Node            // array nodes only (nil for time-series leaves)

	exist     map[string]*decisionModel // per-member existence, object nodes
	typeModel *decisionModel
	sizeModel *decisionModel

	value squid.LeafCoder
	ts    *tsLeaf
}

// Build constructs the mirror tree from the declared leaf specs. Leaf ids
// are assigned in the order leaves are first encountered while walking the
// path list, matching the schema-violation rule that more than 65535 leaves
// is fatal at load time.
func Build(leaves []LeafSpec) (*Node, error) {
	if len(leaves) > 65535 {
		return nil, fmt.Errorf("jsonmodel: %d leaves exceeds the 65535 limit", len(leaves))
	}
	root := &Node{Kind: KindObjectNode, LeafID: -1, Children: map[string]*Node{}}
	for id, spec := range leaves {
		if err := root.insert(spec, id); err != nil {
			return nil, err
		}
	}
	root.sortMembers()
	return root, nil
}

func (n *Node) insert(spec LeafSpec, leafID int) error {
	path := spec.Path
	if len(path) == 0 {
		n.Kind = KindLeafNode
		n.LeafID = leafID
		n.Types = spec.Types
		n.LeafType = spec.Types[0]
		n.TimeSeries = n.LeafType == schema.TimeSeries
		n.Range = spec.Range
		n.IntMin = spec.IntMin
		n.BinSize = spec.BinSize
		return nil
	}
	if path[0] == "" {
		// array element wildcard
		n.Kind = KindArrayNode
		if n.Element == nil {
			n.Element = &Node{Kind: KindObjectNode, LeafID: -1, Children: map[string]*Node{}}
		}
		return n.Element.insert(LeafSpec{Path: path[1:], Types: spec.Types, Range: spec.Range, IntMin: spec.IntMin, BinSize: spec.BinSize}, leafID)
	}
	n.Kind = KindObjectNode
	if n.Children == nil {
		n.Children = map[string]*Node{}
	}
	child, ok := n.Children[path[0]]
	if !ok {
		child = &Node{Kind: KindObjectNode, Name: path[0], LeafID: -1, Children: map[string]*Node{}}
		n.Children[path[0]] = child
		n.Members = append(n.Members, path[0])
	}
	return child.insert(LeafSpec{Path: path[1:], Types: spec.Types, Range: spec.Range, IntMin: spec.IntMin, BinSize: spec.BinSize}, leafID)
}

func (n *Node) sortMembers() {
	sort.Strings(n.Members)
	for _, name := range n.Members {
		n.Children[name].sortMembers()
	}
	if n.Element != nil {
		n.Element.sortMembers()
	}
}

// Path returns the node's own member name ("" for the root and for array
// elements); it does not include the names of its ancestors.
func (n *Node) Path() string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	return sb.String()
}

// Walk calls fn for every node in the tree, pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, name := range n.Members {
		n.Children[name].Walk(fn)
	}
	if n.Element != nil {
		n.Element.Walk(fn)
	}
}

// LeafCount returns the total number of leaves declared under the tree,
// which doubles as the width of the ancestor-context tuple used by the
// triplet learner.
func (n *Node) LeafCount() int {
	max := -1
	n.Walk(func(m *Node) {
		if m.Kind == KindLeafNode && m.LeafID > max {
			max = m.LeafID
		}
	})
	return max + 1
}
