package jsonmodel

import "github.com/YimingQiao/blitzcrank/schema"

// Snapshot is one document's decision outcomes and leaf values, gathered in
// a single worklist pass independent of any attached sub-model. The triplet
// learner builds one Snapshot per training document up front, then scores
// candidate predictor sets against the snapshots directly instead of
// re-walking the DOM for every candidate it tries.
type Snapshot struct {
	LeafValues []schema.Value // indexed by leaf id; zero Value when absent
	Exist      map[*Node]map[string]bool
	TypeIdx    map[*Node]int
	ArraySize  map[*Node]int
}

type snapshotFrame struct {
	node *Node
	dom  DOMNode
}

// TakeSnapshot walks doc against root's shape and records every exist/type/
// array_size outcome plus every leaf value encountered, non-recursively, the
// same explicit-stack discipline Feed/Encode/Decode use.
func TakeSnapshot(root *Node, doc DOMNode, leafCount int) Snapshot {
	snap := Snapshot{
		LeafValues: make([]schema.Value, leafCount),
		Exist:      map[*Node]map[string]bool{},
		TypeIdx:    map[*Node]int{},
		ArraySize:  map[*Node]int{},
	}
	stack := []snapshotFrame{{root, doc}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, dom := f.node, f.dom
		dk := dom.Kind()

		if ti := typeIndexFor(n, dk); ti >= 0 {
			snap.TypeIdx[n] = ti
		}

		switch n.Kind {
		case KindLeafNode:
			if n.TimeSeries {
				snap.ArraySize[n] = clampSize(len(dom.Elements()))
				break
			}
			snap.LeafValues[n.LeafID] = leafContextValue(n, dom)
		case KindArrayNode:
			elems := dom.Elements()
			snap.ArraySize[n] = clampSize(len(elems))
			for _, e := range elems {
				stack = append(stack, snapshotFrame{n.Element, e})
			}
		case KindObjectNode:
			if dk != KindObject {
				break
			}
			ex := make(map[string]bool, len(n.Members))
			for _, name := range n.Members {
				dv := dom.Get(name)
				exists := dv.Kind() != KindNull
				ex[name] = exists
				if exists {
					stack = append(stack, snapshotFrame{n.Children[name], dv})
				}
			}
			snap.Exist[n] = ex
		}
	}
	return snap
}
