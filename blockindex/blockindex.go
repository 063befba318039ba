// Package blockindex implements the bit-offset sidecar (§4.13) that makes
// random access possible: a sequence of (bits_in_block, tuples_in_block)
// pairs, written as the compressor finishes each block and read back as
// monotone prefix sums for binary search.
package blockindex

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/influxdata/influxdb/pkg/encoding/simple8b"
)

// Entry is one block-index row: both fields fit in 16 bits (§3).
type Entry struct {
	BitsInBlock   uint16
	TuplesInBlock uint16
}

// Writer accumulates block-index entries during compression and finalizes
// them into the trailer layout §6 describes: N entries followed by a
// 32-bit count, with the entries' bit counts additionally packed via
// simple8b for the in-memory running prefix (a cheap way to exercise a
// dense integer codec on a column that is overwhelmingly small deltas).
type Writer struct {
	entries []Entry
}

// NewWriter returns an empty block-index writer.
func NewWriter() *Writer { return &Writer{} }

// Append records one finished block.
func (w *Writer) Append(bitsInBlock, tuplesInBlock int) error {
	if bitsInBlock < 0 || bitsInBlock > 65535 || tuplesInBlock < 0 || tuplesInBlock > 65535 {
		return fmt.Errorf("blockindex: entry (%d,%d) exceeds 16-bit range", bitsInBlock, tuplesInBlock)
	}
	w.entries = append(w.entries, Entry{BitsInBlock: uint16(bitsInBlock), TuplesInBlock: uint16(tuplesInBlock)})
	return nil
}

// Len reports how many blocks have been recorded.
func (w *Writer) Len() int { return len(w.entries) }

// PackedBits returns the per-block bit counts packed with simple8b, purely
// as a compact in-memory/diagnostic representation; the on-disk trailer
// format always uses the fixed-width u16 pairs §6 specifies.
func (w *Writer) PackedBits() ([]uint64, error) {
	vals := make([]uint64, len(w.entries))
	for i, e := range w.entries {
		vals[i] = uint64(e.BitsInBlock)
	}
	packed, err := simple8b.EncodeAll(vals)
	if err != nil {
		return nil, fmt.Errorf("blockindex: simple8b encode: %w", err)
	}
	return packed, nil
}

// Finalize serializes the trailer: N pairs of (u16, u16) followed by a u32
// count, matching §6's layout exactly.
func (w *Writer) Finalize() []byte {
	buf := make([]byte, 0, len(w.entries)*4+4)
	for _, e := range w.entries {
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], e.BitsInBlock)
		binary.BigEndian.PutUint16(b[2:4], e.TuplesInBlock)
		buf = append(buf, b[:]...)
	}
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(w.entries)))
	return append(buf, count[:]...)
}

// Index is the read-side view: monotone prefix sums over bits and tuples,
// supporting binary-search random access.
type Index struct {
	entries     []Entry
	bitsPrefix  []uint64
	tuplePrefix []uint64
}

// Read parses the trailer bytes §6 describes (the last 4 bytes are N, the
// preceding 4N bytes are the entries) into an Index with prefix sums.
func Read(trailer []byte) (*Index, error) {
	if len(trailer) < 4 {
		return nil, fmt.Errorf("blockindex: trailer too short")
	}
	n := binary.BigEndian.Uint32(trailer[len(trailer)-4:])
	need := int(n)*4 + 4
	if len(trailer) < need {
		return nil, fmt.Errorf("blockindex: trailer declares %d entries but only has %d bytes", n, len(trailer))
	}
	body := trailer[len(trailer)-need : len(trailer)-4]

	idx := &Index{
		entries:     make([]Entry, n),
		bitsPrefix:  make([]uint64, n+1),
		tuplePrefix: make([]uint64, n+1),
	}
	for i := uint32(0); i < n; i++ {
		off := i * 4
		bits := binary.BigEndian.Uint16(body[off : off+2])
		tuples := binary.BigEndian.Uint16(body[off+2 : off+4])
		idx.entries[i] = Entry{BitsInBlock: bits, TuplesInBlock: tuples}
		idx.bitsPrefix[i+1] = idx.bitsPrefix[i] + uint64(bits)
		idx.tuplePrefix[i+1] = idx.tuplePrefix[i] + uint64(tuples)
	}
	return idx, nil
}

// NumBlocks reports the number of indexed blocks.
func (idx *Index) NumBlocks() int { return len(idx.entries) }

// TotalTuples reports the total tuple count across all blocks.
func (idx *Index) TotalTuples() uint64 { return idx.tuplePrefix[len(idx.tuplePrefix)-1] }

// BitsPrefixAt returns bits_prefix[i], the number of data-region bits
// preceding block i.
func (idx *Index) BitsPrefixAt(i int) uint64 { return idx.bitsPrefix[i] }

// TuplesPrefixAt returns tuples_prefix[i].
func (idx *Index) TuplesPrefixAt(i int) uint64 { return idx.tuplePrefix[i] }

// LocateTuple finds the block containing logical tuple t, and the number of
// tuples within that block to skip before reaching t (§4.13's random-access
// lookup).
func (idx *Index) LocateTuple(t uint64) (block int, bitOffset uint64, skip uint64, err error) {
	if t >= idx.TotalTuples() {
		return 0, 0, 0, fmt.Errorf("blockindex: tuple %d out of range (%d total)", t, idx.TotalTuples())
	}
	block = sort.Search(len(idx.entries), func(i int) bool {
		return idx.tuplePrefix[i+1] > t
	})
	return block, idx.bitsPrefix[block], t - idx.tuplePrefix[block], nil
}
