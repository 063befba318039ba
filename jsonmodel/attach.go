package jsonmodel

import (
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// DocSchema builds the ancestor-context schema shared by every decision
// model in the tree: one column per leaf id (typed as that leaf declares),
// plus one trailing column reserved as the transient decision slot every
// exist/type/array_size sub-model writes into before calling its
// CategoricalModel (see decisionModel.feed/interval).
func DocSchema(root *Node) schema.Schema {
	n := root.LeafCount()
	types := make([]schema.AttrType, n+1)
	for i := range types {
		types[i] = schema.Categorical
	}
	root.Walk(func(m *Node) {
		if m.Kind == KindLeafNode && m.LeafID >= 0 {
			types[m.LeafID] = m.LeafType
		}
	})
	return schema.NewSchema(types...)
}

// Ancestors is the triplet learner's chosen predictor set: for each node
// path (identified by a stable key), the ancestor leaf ids its exist/type/
// array_size sub-models condition on.
type Ancestors map[*Node][]int

// Attach instantiates every sub-model in the tree fresh, ready for
// Feed/EndOfData, using anc to pick each node's predictor sets (nil or
// missing entries mean "unconditioned").
func Attach(root *Node, reg *registry.Registry, docSchema schema.Schema, anc Ancestors) {
	decisionAt := docSchema.Width() - 1
	root.Walk(func(n *Node) {
		preds := anc[n]
		switch n.Kind {
		case KindObjectNode:
			n.exist = make(map[string]*decisionModel, len(n.Members))
			for _, name := range n.Members {
				n.exist[name] = newDecisionModel(reg, docSchema, preds, decisionAt, 2)
			}
		case KindArrayNode:
			n.sizeModel = newDecisionModel(reg, docSchema, preds, decisionAt, arraySizeCap)
		case KindLeafNode:
			if len(n.Types) > 1 {
				n.typeModel = newDecisionModel(reg, docSchema, preds, decisionAt, len(n.Types))
			}
			if n.TimeSeries {
				n.ts = newTSLeaf(defaultTSOrder, n.BinSize)
				n.sizeModel = newDecisionModel(reg, docSchema, preds, decisionAt, arraySizeCap)
				return
			}
			n.value = newLeafCoder(reg, n)
		}
	})
}

func newLeafCoder(reg *registry.Registry, n *Node) squid.LeafCoder {
	switch n.LeafType {
	case schema.Real:
		return squid.NewNumericalLeafCoder(n.BinSize, false)
	case schema.Int:
		rng := n.Range
		if rng <= 0 {
			rng = 1 << 16
		}
		return squid.NewCategoricalLeafCoder(reg, rng, true, n.IntMin)
	case schema.String:
		return squid.NewStringLeafCoder()
	default:
		rng := n.Range
		if rng <= 0 {
			rng = 2
		}
		return squid.NewCategoricalLeafCoder(reg, rng, false, 0)
	}
}
