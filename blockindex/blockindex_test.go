package blockindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Append(120, 4))
	require.NoError(t, w.Append(80, 2))
	require.NoError(t, w.Append(200, 5))
	trailer := w.Finalize()

	idx, err := Read(trailer)
	require.NoError(t, err)
	require.Equal(t, 3, idx.NumBlocks())
	require.EqualValues(t, 11, idx.TotalTuples())
	require.EqualValues(t, 120+80, idx.BitsPrefixAt(2))
}

func TestLocateTuple(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Append(100, 3))
	require.NoError(t, w.Append(50, 2))
	idx, err := Read(w.Finalize())
	require.NoError(t, err)

	block, bitOff, skip, err := idx.LocateTuple(4)
	require.NoError(t, err)
	require.Equal(t, 1, block)
	require.EqualValues(t, 100, bitOff)
	require.EqualValues(t, 1, skip)
}

func TestMonotonePrefixes(t *testing.T) {
	w := NewWriter()
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Append(i*3+1, i+1))
	}
	idx, err := Read(w.Finalize())
	require.NoError(t, err)
	for i := 1; i <= idx.NumBlocks(); i++ {
		require.GreaterOrEqual(t, idx.BitsPrefixAt(i), idx.BitsPrefixAt(i-1))
		require.Greater(t, idx.TuplesPrefixAt(i), idx.TuplesPrefixAt(i-1))
	}
}
