package jsonmodel

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/schema"
)

// docKind mirrors DOMKind onto the node's own type enum ordering, used as
// the discrete outcome for each node's type sub-model.
type docKind = DOMKind

// typeIndex maps a DOMKind to a dense index within a node's permissible
// Types slice, or -1 if the node admits exactly one type (no sub-model).
func typeIndexFor(n *Node, dk DOMKind) int {
	if len(n.Types) <= 1 {
		return -1
	}
	for i, t := range n.Types {
		if domKindMatchesAttr(dk, t) {
			return i
		}
	}
	return 0
}

func domKindMatchesAttr(dk DOMKind, at schema.AttrType) bool {
	switch at {
	case schema.Int, schema.Categorical, schema.CategoricalMarkov:
		return dk == KindNumber
	case schema.Real:
		return dk == KindNumber
	case schema.String:
		return dk == KindString
	case schema.TimeSeries:
		return dk == KindArray
	default:
		return false
	}
}

// feedFrame/encodeFrame/decodeFrame are the explicit worklist entries that
// replace recursive descent (§4.11, §8's "deep recursion" redesign flag).
type feedFrame struct {
	node *Node
	dom  DOMNode
	ctx  schema.Tuple
}

// Feed trains every sub-model along the tree over one document, using an
// explicit stack instead of recursion so traversal depth never grows the Go
// call stack regardless of document nesting.
func Feed(root *Node, dom DOMNode, ctxWidth int) {
	stack := []feedFrame{{node: root, dom: dom, ctx: schema.NewTuple(ctxWidth)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		feedOne(f, &stack)
	}
}

func feedOne(f feedFrame, stack *[]feedFrame) {
	n, dom, ctx := f.node, f.dom, f.ctx
	dk := dom.Kind()

	if n.typeModel != nil {
		if ti := typeIndexFor(n, dk); ti >= 0 {
			n.typeModel.feed(ctx, ti)
		}
	}

	switch n.Kind {
	case KindLeafNode:
		if n.TimeSeries {
			feedTimeSeries(n, ctx, dom)
			return
		}
		feedLeafValue(n, ctx, dom)
	case KindArrayNode:
		elems := dom.Elements()
		if n.sizeModel != nil {
			n.sizeModel.feed(ctx, clampSize(len(elems)))
		}
		for _, e := range elems {
			*stack = append(*stack, feedFrame{node: n.Element, dom: e, ctx: ctx})
		}
	case KindObjectNode:
		if dk != KindObject {
			return
		}
		for _, name := range n.Members {
			child := n.Children[name]
			dv := dom.Get(name)
			exists := dv.Kind() != KindNull
			if dm := n.exist[name]; dm != nil {
				e := 0
				if exists {
					e = 1
				}
				dm.feed(ctx, e)
			}
			if !exists {
				continue
			}
			childCtx := ctx
			if child.Kind == KindLeafNode && child.LeafID >= 0 {
				childCtx.Values[child.LeafID] = leafContextValue(child, dv)
			}
			*stack = append(*stack, feedFrame{node: child, dom: dv, ctx: childCtx})
		}
	}
}

func clampSize(n int) int {
	if n >= arraySizeCap {
		return arraySizeCap - 1
	}
	return n
}

// leafContextValue snapshots a leaf's value into the shared ancestor
// context tuple, so descendant triplets can condition on it.
func leafContextValue(n *Node, dv DOMNode) schema.Value {
	switch n.LeafType {
	case schema.Real:
		return schema.FloatValue(dv.Number())
	case schema.String:
		return schema.StringValue(dv.String())
	default:
		return schema.IntValue(int32(dv.Number()))
	}
}

func feedLeafValue(n *Node, ctx schema.Tuple, dom DOMNode) {
	if n.value == nil {
		return
	}
	n.value.Feed(leafContextValue(n, dom), 1)
}

func feedTimeSeries(n *Node, ctx schema.Tuple, dom DOMNode) {
	if n.ts == nil {
		return
	}
	elems := dom.Elements()
	if n.sizeModel != nil {
		n.sizeModel.feed(ctx, clampSize(len(elems)))
	}
	series := make([]float64, len(elems))
	for i, e := range elems {
		series[i] = e.Number()
	}
	n.ts.feed(series)
}

// EndOfData finalizes every sub-model reachable from root, pre-order, via
// the same explicit-stack discipline as Feed.
func EndOfData(root *Node) {
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.typeModel != nil {
			n.typeModel.endOfData()
		}
		if n.sizeModel != nil {
			n.sizeModel.endOfData()
		}
		for _, dm := range n.exist {
			dm.endOfData()
		}
		if n.value != nil {
			n.value.EndOfData()
		}
		if n.ts != nil {
			n.ts.endOfData()
		}
		for _, name := range n.Members {
			stack = append(stack, n.Children[name])
		}
		if n.Element != nil {
			stack = append(stack, n.Element)
		}
	}
}

type encodeFrame struct {
	node *Node
	dom  DOMNode
	ctx  schema.Tuple
}

// Encode walks the tree and the document jointly, emitting every decision
// and value interval to enc, again via an explicit stack.
func Encode(root *Node, enc *coding.Encoder, dom DOMNode, ctxWidth int) error {
	stack := []encodeFrame{{node: root, dom: dom, ctx: schema.NewTuple(ctxWidth)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := encodeOne(f, &stack, enc); err != nil {
			return err
		}
	}
	return nil
}

func encodeOne(f encodeFrame, stack *[]encodeFrame, enc *coding.Encoder) error {
	n, dom, ctx := f.node, f.dom, f.ctx
	dk := dom.Kind()

	if n.typeModel != nil {
		ti := typeIndexFor(n, dk)
		if ti < 0 {
			ti = 0
		}
		if iv, skip := n.typeModel.interval(ctx, ti); !skip {
			if err := enc.Encode(iv); err != nil {
				return fmt.Errorf("jsonmodel: encode type at %q: %w", n.Name, err)
			}
		}
	}

	switch n.Kind {
	case KindLeafNode:
		if n.TimeSeries {
			return encodeTimeSeries(n, ctx, enc, dom)
		}
		return encodeLeafValue(n, ctx, enc, dom)
	case KindArrayNode:
		elems := dom.Elements()
		if n.sizeModel != nil {
			sz := clampSize(len(elems))
			if iv, skip := n.sizeModel.interval(ctx, sz); !skip {
				if err := enc.Encode(iv); err != nil {
					return fmt.Errorf("jsonmodel: encode array size at %q: %w", n.Name, err)
				}
			}
		}
		for _, e := range elems {
			*stack = append(*stack, encodeFrame{node: n.Element, dom: e, ctx: ctx})
		}
	case KindObjectNode:
		for _, name := range n.Members {
			child := n.Children[name]
			dv := dom.Get(name)
			exists := dv.Kind() != KindNull
			if dm := n.exist[name]; dm != nil {
				e := 0
				if exists {
					e = 1
				}
				if iv, skip := dm.interval(ctx, e); !skip {
					if err := enc.Encode(iv); err != nil {
						return fmt.Errorf("jsonmodel: encode exist %q: %w", name, err)
					}
				}
			}
			if !exists {
				continue
			}
			childCtx := ctx
			if child.Kind == KindLeafNode && child.LeafID >= 0 {
				childCtx.Values[child.LeafID] = leafContextValue(child, dv)
			}
			*stack = append(*stack, encodeFrame{node: child, dom: dv, ctx: childCtx})
		}
	}
	return nil
}

func encodeLeafValue(n *Node, ctx schema.Tuple, enc *coding.Encoder, dom DOMNode) error {
	if n.value == nil {
		return nil
	}
	if err := n.value.Encode(enc, leafContextValue(n, dom)); err != nil {
		return fmt.Errorf("jsonmodel: encode leaf %q: %w", n.Name, err)
	}
	return nil
}

func encodeTimeSeries(n *Node, ctx schema.Tuple, enc *coding.Encoder, dom DOMNode) error {
	if n.ts == nil {
		return nil
	}
	elems := dom.Elements()
	if n.sizeModel != nil {
		sz := clampSize(len(elems))
		if iv, skip := n.sizeModel.interval(ctx, sz); !skip {
			if err := enc.Encode(iv); err != nil {
				return fmt.Errorf("jsonmodel: encode time-series length at %q: %w", n.Name, err)
			}
		}
	}
	series := make([]float64, len(elems))
	for i, e := range elems {
		series[i] = e.Number()
	}
	return n.ts.encode(enc, series)
}
