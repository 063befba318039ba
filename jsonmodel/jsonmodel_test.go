package jsonmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

func buildRecordTree(t *testing.T) *Node {
	t.Helper()
	root, err := Build([]LeafSpec{
		{Path: []string{"user", "name"}, Types: []schema.AttrType{schema.String}},
		{Path: []string{"user", "age"}, Types: []schema.AttrType{schema.Int}, Range: 128},
		{Path: []string{"tags", ""}, Types: []schema.AttrType{schema.String}},
		{Path: []string{"score"}, Types: []schema.AttrType{schema.Real}, BinSize: 0.01},
	})
	require.NoError(t, err)
	return root
}

func mustDOM(t *testing.T, raw string) DOMNode {
	t.Helper()
	d, err := ParseStdDOM([]byte(raw))
	require.NoError(t, err)
	return d
}

func roundTrip(t *testing.T, root *Node, docs []string) {
	t.Helper()
	reg := registry.NewRegistry()
	s := DocSchema(root)
	Attach(root, reg, s, Ancestors{})

	ctxWidth := s.Width()
	for _, raw := range docs {
		Feed(root, mustDOM(t, raw), ctxWidth)
	}
	EndOfData(root)

	w := bitio.NewWriter()
	WriteModel(root, w)
	modelBytes := w.Bytes()

	enc := coding.NewEncoder()
	for _, raw := range docs {
		require.NoError(t, Encode(root, enc, mustDOM(t, raw), ctxWidth))
	}
	payload := enc.Finish()

	root2, err := Build([]LeafSpec{
		{Path: []string{"user", "name"}, Types: []schema.AttrType{schema.String}},
		{Path: []string{"user", "age"}, Types: []schema.AttrType{schema.Int}, Range: 128},
		{Path: []string{"tags", ""}, Types: []schema.AttrType{schema.String}},
		{Path: []string{"score"}, Types: []schema.AttrType{schema.Real}, BinSize: 0.01},
	})
	require.NoError(t, err)
	mr := bitio.NewReader(modelBytes)
	require.NoError(t, ReadModel(root2, mr, reg, s))

	dec := coding.NewDecoder(payload)
	for _, raw := range docs {
		got, err := Decode(root2, dec, ctxWidth)
		require.NoError(t, err)
		want := mustDOM(t, raw)
		requireDOMEqual(t, want, got)
	}
}

// requireDOMEqual compares a decoded interface{} tree against the parsed
// original, tolerating the float64-everywhere numeric convention
// encoding/json and this decoder both use.
func requireDOMEqual(t *testing.T, want DOMNode, got interface{}) {
	t.Helper()
	switch want.Kind() {
	case KindNull:
		require.Nil(t, got)
	case KindString:
		require.Equal(t, want.String(), got)
	case KindNumber:
		require.InDelta(t, want.Number(), got, 1e-6)
	case KindArray:
		gotArr, ok := got.([]interface{})
		require.True(t, ok)
		wantElems := want.Elements()
		require.Len(t, gotArr, len(wantElems))
		for i, e := range wantElems {
			requireDOMEqual(t, e, gotArr[i])
		}
	case KindObject:
		gotMap, ok := got.(map[string]interface{})
		require.True(t, ok)
		for _, name := range want.Members() {
			requireDOMEqual(t, want.Get(name), gotMap[name])
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	root := buildRecordTree(t)
	docs := []string{
		`{"user":{"name":"ada","age":36},"tags":["math","logic"],"score":0.91}`,
		`{"user":{"name":"grace"},"tags":[],"score":0.42}`,
		`{"tags":["navy"],"score":-1.5}`,
	}
	roundTrip(t, root, docs)
}

func TestTimeSeriesRoundTrip(t *testing.T) {
	root, err := Build([]LeafSpec{
		{Path: []string{"metrics"}, Types: []schema.AttrType{schema.TimeSeries}, BinSize: 0.001},
	})
	require.NoError(t, err)

	reg := registry.NewRegistry()
	s := DocSchema(root)
	Attach(root, reg, s, Ancestors{})

	docs := make([]string, 0, 8)
	for d := 0; d < 8; d++ {
		series := "["
		for k := 0; k < 20; k++ {
			if k > 0 {
				series += ","
			}
			series += "0.0"
		}
		series += "]"
		docs = append(docs, `{"metrics":`+series+`}`)
	}

	ctxWidth := s.Width()
	for _, raw := range docs {
		Feed(root, mustDOM(t, raw), ctxWidth)
	}
	EndOfData(root)

	w := bitio.NewWriter()
	WriteModel(root, w)
	modelBytes := w.Bytes()

	enc := coding.NewEncoder()
	for _, raw := range docs {
		require.NoError(t, Encode(root, enc, mustDOM(t, raw), ctxWidth))
	}
	payload := enc.Finish()

	root2, err := Build([]LeafSpec{
		{Path: []string{"metrics"}, Types: []schema.AttrType{schema.TimeSeries}, BinSize: 0.001},
	})
	require.NoError(t, err)
	mr := bitio.NewReader(modelBytes)
	require.NoError(t, ReadModel(root2, mr, reg, s))

	dec := coding.NewDecoder(payload)
	for range docs {
		_, err := Decode(root2, dec, ctxWidth)
		require.NoError(t, err)
	}
}
