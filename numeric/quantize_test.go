package numeric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sumU32(ws []uint32) uint64 {
	var s uint64
	for _, w := range ws {
		s += uint64(w)
	}
	return s
}

func TestQuantizeSumsExactly(t *testing.T) {
	counts := []uint64{900, 50, 50}
	ws, err := Quantize(counts, 16)
	require.NoError(t, err)
	require.EqualValues(t, 65536, sumU32(ws))
	for i, c := range counts {
		if c > 0 {
			require.Greater(t, ws[i], uint32(0), "bin %d had positive count but zero weight", i)
		}
	}
}

func TestQuantizeRareBinsGetPositiveWeight(t *testing.T) {
	counts := []uint64{1_000_000, 1, 1, 1}
	ws, err := Quantize(counts, 16)
	require.NoError(t, err)
	require.EqualValues(t, 65536, sumU32(ws))
	for i := 1; i < len(counts); i++ {
		require.GreaterOrEqual(t, ws[i], uint32(1))
	}
}

func TestQuantizeEightBit(t *testing.T) {
	counts := []uint64{3, 1}
	ws, err := Quantize(counts, 8)
	require.NoError(t, err)
	require.EqualValues(t, 256, sumU32(ws))
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	require.EqualValues(t, 2, RoundHalfAwayFromZero(1.5))
	require.EqualValues(t, -2, RoundHalfAwayFromZero(-1.5))
	require.EqualValues(t, 1, RoundHalfAwayFromZero(1.4))
}

func TestNarrowF32Idempotent(t *testing.T) {
	x := 0.1
	once := NarrowF32(x)
	twice := NarrowF32(once)
	require.Equal(t, once, twice)
}
