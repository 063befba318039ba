package jsonmodel

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/schema"
)

// decodeFrame carries enough to resolve a child's slot in its
// already-allocated parent container once decoded; object/array containers
// are reference types, so a frame can attach its own (empty) container to
// the parent immediately and let later frames fill it in, which is what
// lets this traversal stay an explicit stack instead of recursive descent.
type decodeFrame struct {
	node   *Node
	ctx    schema.Tuple
	set    func(v interface{})
}

// Decode reconstructs one document from dec, mirroring Encode's traversal
// exactly (same type/exist/size decisions, same order) so the arithmetic
// stream stays in sync.
func Decode(root *Node, dec *coding.Decoder, ctxWidth int) (interface{}, error) {
	var result interface{}
	stack := []decodeFrame{{node: root, ctx: schema.NewTuple(ctxWidth), set: func(v interface{}) { result = v }}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := decodeOne(f, &stack, dec); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func decodeOne(f decodeFrame, stack *[]decodeFrame, dec *coding.Decoder) error {
	n, ctx := f.node, f.ctx

	dk := KindObject
	if n.typeModel != nil {
		dk = decodeTypeDecision(n, ctx, dec)
	} else if len(n.Types) == 1 {
		dk = attrDOMKind(n.Types[0])
	} else if n.Kind == KindArrayNode {
		dk = KindArray
	} else if n.Kind == KindLeafNode {
		dk = attrDOMKind(n.LeafType)
	}

	switch n.Kind {
	case KindLeafNode:
		if n.TimeSeries {
			return decodeTimeSeries(n, ctx, dec, f.set)
		}
		return decodeLeafValue(n, dec, f.set)
	case KindArrayNode:
		return decodeArray(n, ctx, dec, stack, f.set)
	case KindObjectNode:
		if dk != KindObject {
			f.set(nil)
			return nil
		}
		return decodeObject(n, ctx, dec, stack, f.set)
	}
	return nil
}

func decodeTypeDecision(n *Node, ctx schema.Tuple, dec *coding.Decoder) DOMKind {
	idx := n.typeModel.locate(ctx, dec)
	if idx < 0 || idx >= len(n.Types) {
		idx = 0
	}
	return attrDOMKind(n.Types[idx])
}

func attrDOMKind(at schema.AttrType) DOMKind {
	switch at {
	case schema.Real, schema.Int, schema.Categorical, schema.CategoricalMarkov:
		return KindNumber
	case schema.String:
		return KindString
	case schema.TimeSeries:
		return KindArray
	default:
		return KindNull
	}
}

func decodeArray(n *Node, ctx schema.Tuple, dec *coding.Decoder, stack *[]decodeFrame, set func(interface{})) error {
	size := 0
	if n.sizeModel != nil {
		size = n.sizeModel.locate(ctx, dec)
	}
	out := make([]interface{}, size)
	set(out)
	for i := 0; i < size; i++ {
		idx := i
		*stack = append(*stack, decodeFrame{node: n.Element, ctx: ctx, set: func(v interface{}) { out[idx] = v }})
	}
	return nil
}

func decodeObject(n *Node, ctx schema.Tuple, dec *coding.Decoder, stack *[]decodeFrame, set func(interface{})) error {
	out := make(map[string]interface{})
	set(out)
	for _, name := range n.Members {
		child := n.Children[name]
		exists := true
		if dm := n.exist[name]; dm != nil {
			exists = dm.locate(ctx, dec) == 1
		}
		if !exists {
			continue
		}
		childCtx := ctx
		nm := name
		*stack = append(*stack, decodeFrame{node: child, ctx: childCtx, set: func(v interface{}) {
			out[nm] = v
			if child.Kind == KindLeafNode && child.LeafID >= 0 {
				childCtx.Values[child.LeafID] = valueToContext(child.LeafType, v)
			}
		}})
	}
	return nil
}

func valueToContext(at schema.AttrType, v interface{}) schema.Value {
	switch at {
	case schema.Real:
		f, _ := v.(float64)
		return schema.FloatValue(f)
	case schema.String:
		s, _ := v.(string)
		return schema.StringValue(s)
	default:
		f, _ := v.(float64)
		return schema.IntValue(int32(f))
	}
}

func decodeLeafValue(n *Node, dec *coding.Decoder, set func(interface{})) error {
	if n.value == nil {
		set(nil)
		return nil
	}
	v, err := n.value.Decode(dec)
	if err != nil {
		return fmt.Errorf("jsonmodel: decode leaf %q: %w", n.Name, err)
	}
	switch n.LeafType {
	case schema.Real:
		set(v.Float())
	case schema.String:
		set(v.Str())
	default:
		set(float64(v.Int()))
	}
	return nil
}

func decodeTimeSeries(n *Node, ctx schema.Tuple, dec *coding.Decoder, set func(interface{})) error {
	if n.ts == nil {
		set(nil)
		return nil
	}
	size := 0
	if n.sizeModel != nil {
		size = n.sizeModel.locate(ctx, dec)
	}
	series, err := n.ts.decode(dec, size)
	if err != nil {
		return fmt.Errorf("jsonmodel: decode time-series %q: %w", n.Name, err)
	}
	out := make([]interface{}, len(series))
	for i, v := range series {
		out[i] = v
	}
	set(out)
	return nil
}
