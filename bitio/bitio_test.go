package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0x3, 2)
	w.WriteU16(0xBEEF)
	w.WriteU32(0xCAFEF00D)
	w.WriteByte(0x5A)
	buf := w.Finish()

	r := NewReader(buf)
	v2, err := r.ReadBits(2)
	require.NoError(t, err)
	require.EqualValues(t, 0x3, v2)

	v16, err := r.ReadU16()
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, v16)

	v32, err := r.ReadU32()
	require.NoError(t, err)
	require.EqualValues(t, 0xCAFEF00D, v32)

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.EqualValues(t, 0x5A, b)
}

func TestSeekAndTell(t *testing.T) {
	w := NewWriter()
	for i := 0; i < 10; i++ {
		w.WriteU16(uint16(i))
	}
	buf := w.Finish()
	r := NewReader(buf)

	require.NoError(t, r.Seek(5*16))
	require.EqualValues(t, 5*16, r.Tell())
	v, err := r.ReadU16()
	require.NoError(t, err)
	require.EqualValues(t, 5, v)

	require.NoError(t, r.Seek(0))
	v, err = r.ReadU16()
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
}

func TestReadPastEndErrors(t *testing.T) {
	w := NewWriter()
	w.WriteByte(1)
	buf := w.Finish()
	r := NewReader(buf)
	_, err := r.ReadU32()
	require.Error(t, err)
}

func TestTotalBitsTracksUnflushedPartial(t *testing.T) {
	w := NewWriter()
	w.WriteBits(1, 3)
	require.EqualValues(t, 3, w.TotalBits())
	w.Finish()
	require.EqualValues(t, 3, w.TotalBits())
}

func TestFastU16FallsBackWhenUnaligned(t *testing.T) {
	w := NewWriter()
	w.WriteBits(1, 1)
	w.WriteU16(0x1234)
	buf := w.Finish()

	r := NewReader(buf)
	_, _ = r.ReadBits(1)
	// not aligned: falls back transparently and still reads the right value
	v, err := r.ReadU16Fast()
	require.NoError(t, err)
	require.EqualValues(t, 0x1234, v)
}
