package coding

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	weights := []uint32{10, 1, 3, 50000, 2}
	table := NewCumTable(weights)
	symbols := []int{3, 3, 0, 4, 1, 3, 2, 3, 0}

	enc := NewEncoder()
	for _, s := range symbols {
		require.NoError(t, enc.Encode(table.Interval(s)))
	}
	buf := enc.Finish()

	dec := NewDecoder(buf)
	for _, want := range symbols {
		v := dec.ScaledValue(table.Total())
		got := table.Locate(v)
		require.Equal(t, want, got)
		require.NoError(t, dec.Consume(table.Interval(got)))
	}
}

func TestCumTableLocateBoundaries(t *testing.T) {
	table := NewCumTable([]uint32{4, 4, 4, 4})
	require.Equal(t, 0, table.Locate(0))
	require.Equal(t, 0, table.Locate(3))
	require.Equal(t, 1, table.Locate(4))
	require.Equal(t, 3, table.Locate(15))
}

func TestBlockWriterFlushesAtBoundary(t *testing.T) {
	w := NewBlockWriter(2)
	table := NewCumTable([]uint32{1, 1})
	require.NoError(t, w.Encode(table.Interval(0)))
	_, _, ok := w.EndTuple()
	require.False(t, ok)
	require.NoError(t, w.Encode(table.Interval(1)))
	_, n, ok := w.EndTuple()
	require.True(t, ok)
	require.Equal(t, 2, n)
}

func TestRarePoolRoundTrip(t *testing.T) {
	pool := NewRarePool([]int{101, 202, 303})
	iv, ok := pool.Interval(202)
	require.True(t, ok)
	require.Equal(t, 202, pool.Locate(int(iv.CumLow)))
}
