package jsonlearner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/jsonmodel"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

func buildTree(t *testing.T) *jsonmodel.Node {
	t.Helper()
	root, err := jsonmodel.Build([]jsonmodel.LeafSpec{
		{Path: []string{"country"}, Types: []schema.AttrType{schema.Int}, Range: 4},
		{Path: []string{"city"}, Types: []schema.AttrType{schema.Int}, Range: 16},
	})
	require.NoError(t, err)
	return root
}

func mustDOM(t *testing.T, raw string) jsonmodel.DOMNode {
	t.Helper()
	d, err := jsonmodel.ParseStdDOM([]byte(raw))
	require.NoError(t, err)
	return d
}

func TestLearnSkipReturnsEmptyAncestors(t *testing.T) {
	root := buildTree(t)
	reg := registry.NewRegistry()
	s := jsonmodel.DocSchema(root)
	anc := Learn(root, reg, s, nil, true)
	require.Empty(t, anc)
}

// TestLearnPicksFlagAsGroupExistencePredictor builds a corpus where the
// "group" object's presence is fully determined by an earlier "flag" leaf,
// so the greedy grower should pick flag as the predictor for root's
// exist["group"] decision.
func TestLearnPicksFlagAsGroupExistencePredictor(t *testing.T) {
	root, err := jsonmodel.Build([]jsonmodel.LeafSpec{
		{Path: []string{"flag"}, Types: []schema.AttrType{schema.Int}, Range: 2},
		{Path: []string{"group", "member"}, Types: []schema.AttrType{schema.Int}, Range: 2},
	})
	require.NoError(t, err)
	reg := registry.NewRegistry()
	s := jsonmodel.DocSchema(root)

	docs := make([]Doc, 0, 2)
	for i := 0; i < 40; i++ {
		docs = append(docs, Doc{Node: mustDOM(t, `{"flag":1,"group":{"member":1}}`), Count: 1})
		docs = append(docs, Doc{Node: mustDOM(t, `{"flag":0}`), Count: 1})
	}
	anc := Learn(root, reg, s, docs, false)
	require.Equal(t, []int{0}, anc[root])
}

func TestStructuralAncestorsOrdersByDeclaration(t *testing.T) {
	root, err := jsonmodel.Build([]jsonmodel.LeafSpec{
		{Path: []string{"a"}, Types: []schema.AttrType{schema.Int}, Range: 4},
		{Path: []string{"b", "c"}, Types: []schema.AttrType{schema.Int}, Range: 4},
	})
	require.NoError(t, err)

	pool := structuralAncestors(root)
	var bNode *jsonmodel.Node
	root.Walk(func(n *jsonmodel.Node) {
		if n.Kind == jsonmodel.KindObjectNode && n.Name == "b" {
			bNode = n
		}
	})
	require.NotNil(t, bNode)
	require.Equal(t, []int{0}, pool[bNode])
}
