package jsonmodel

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// WriteModel serializes every sub-model in the tree, in the same pre-order
// Walk always uses. The tree's shape (which nodes exist, which are
// objects/arrays/leaves, which types each leaf admits) is a pure function
// of the shared schema config both the compressor and decompressor load
// independently, so unlike §6's literal per-node layout this omits leaf
// ids and member-name indices from the wire entirely - only the learned
// parameters travel.
func WriteModel(root *Node, w *bitio.Writer) {
	root.Walk(func(n *Node) {
		if n.typeModel != nil {
			n.typeModel.writeModel(w)
		}
		switch n.Kind {
		case KindObjectNode:
			for _, name := range n.Members {
				n.exist[name].writeModel(w)
			}
		case KindArrayNode:
			n.sizeModel.writeModel(w)
		case KindLeafNode:
			if n.TimeSeries {
				n.sizeModel.writeModel(w)
				n.ts.writeModel(w)
				return
			}
			if n.value != nil {
				n.value.WriteModel(w)
			}
		}
	})
}

// ReadModel populates root's sub-models from r, in lockstep with
// WriteModel's traversal. root must already have the right shape (built
// via Build from the same leaf specs).
func ReadModel(root *Node, r *bitio.Reader, reg *registry.Registry, docSchema schema.Schema) error {
	decisionAt := docSchema.Width() - 1
	var walkErr error
	root.Walk(func(n *Node) {
		if walkErr != nil {
			return
		}
		if len(n.Types) > 1 {
			dm, err := readDecisionModel(r, reg, docSchema, decisionAt)
			if err != nil {
				walkErr = fmt.Errorf("jsonmodel: read type sub-model: %w", err)
				return
			}
			n.typeModel = dm
		}
		switch n.Kind {
		case KindObjectNode:
			n.exist = make(map[string]*decisionModel, len(n.Members))
			for _, name := range n.Members {
				dm, err := readDecisionModel(r, reg, docSchema, decisionAt)
				if err != nil {
					walkErr = fmt.Errorf("jsonmodel: read exist sub-model for %q: %w", name, err)
					return
				}
				n.exist[name] = dm
			}
		case KindArrayNode:
			dm, err := readDecisionModel(r, reg, docSchema, decisionAt)
			if err != nil {
				walkErr = fmt.Errorf("jsonmodel: read array size sub-model: %w", err)
				return
			}
			n.sizeModel = dm
		case KindLeafNode:
			if n.TimeSeries {
				dm, err := readDecisionModel(r, reg, docSchema, decisionAt)
				if err != nil {
					walkErr = fmt.Errorf("jsonmodel: read time-series length sub-model: %w", err)
					return
				}
				n.sizeModel = dm
				ts, err := readTSLeaf(r, defaultTSOrder)
				if err != nil {
					walkErr = err
					return
				}
				n.ts = ts
				return
			}
			lc, err := readLeafCoder(r, reg, n)
			if err != nil {
				walkErr = fmt.Errorf("jsonmodel: read leaf %q value model: %w", n.Name, err)
				return
			}
			n.value = lc
		}
	})
	return walkErr
}

const defaultTSOrder = 5

func readLeafCoder(r *bitio.Reader, reg *registry.Registry, n *Node) (squid.LeafCoder, error) {
	switch n.LeafType {
	case schema.Real:
		return squid.ReadNumericalLeafCoder(r, false)
	case schema.Int:
		return squid.ReadCategoricalLeafCoder(r, reg, true, n.IntMin)
	case schema.String:
		return squid.ReadStringLeafCoder(r, reg)
	default:
		return squid.ReadCategoricalLeafCoder(r, reg, false, 0)
	}
}
