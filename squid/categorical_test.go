package squid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

func TestCategoricalModelRoundTrip(t *testing.T) {
	reg := registry.NewRegistry()
	s := schema.NewSchema(schema.Categorical)
	m := NewCategoricalModel(reg, s, nil, 0, 3)

	observations := []int32{0, 0, 0, 1, 1, 2}
	for _, v := range observations {
		m.Feed(schema.Tuple{Values: []schema.Value{schema.IntValue(v)}}, 1)
	}
	m.EndOfData()
	require.NotZero(t, m.Cost())

	enc := coding.NewEncoder()
	for _, v := range observations {
		iv, skip := m.Interval(schema.Tuple{}, int(v))
		require.False(t, skip)
		require.NoError(t, enc.Encode(iv))
	}
	buf := enc.Finish()

	dec := coding.NewDecoder(buf)
	table := m.RowTable(0)
	for _, want := range observations {
		code := dec.ScaledValue(table.Total())
		got := m.Locate(0, code)
		require.EqualValues(t, want, got)
		require.NoError(t, dec.Consume(table.Interval(got)))
	}
}

func TestSplitSentence(t *testing.T) {
	words := splitSentence("foo/bar baz-qux99Item")
	require.Equal(t, []string{"foo", "bar", "baz", "qux", "99", "Item"}, words)
}
