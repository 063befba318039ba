package coding

import "fmt"

// BlockWriter codes a stream of tuples in fixed-size blocks, flushing a new
// independent Encoder at every block boundary so a decoder can seek to any
// block and decode it without replaying earlier blocks (§4/§6 random
// access). Callers report BitsInBlock/TuplesInBlock to the block index
// sidecar after each EndTuple or Flush call that returns ok.
type BlockWriter struct {
	blockSize int
	enc       *Encoder
	tuples    []byte // not written: finished blocks are returned to the caller, not kept here
	inBlock   int
}

// NewBlockWriter starts a writer that flushes after every blockSize tuples.
func NewBlockWriter(blockSize int) *BlockWriter {
	if blockSize <= 0 {
		blockSize = 1
	}
	return &BlockWriter{blockSize: blockSize, enc: NewEncoder()}
}

// Encode codes one branch pick within the current tuple.
func (w *BlockWriter) Encode(iv Interval) error { return w.enc.Encode(iv) }

// EndTuple marks the end of one tuple's branch picks. It returns the
// finished block bytes and tuple count when a block boundary is crossed
// (ok=true), nil otherwise.
func (w *BlockWriter) EndTuple() (blockBytes []byte, tuplesInBlock int, ok bool) {
	w.inBlock++
	if w.inBlock < w.blockSize {
		return nil, 0, false
	}
	return w.flush()
}

func (w *BlockWriter) flush() ([]byte, int, bool) {
	bytes := w.enc.Finish()
	n := w.inBlock
	w.enc = NewEncoder()
	w.inBlock = 0
	return bytes, n, true
}

// Flush force-closes a partial final block (fewer than blockSize tuples).
func (w *BlockWriter) Flush() (blockBytes []byte, tuplesInBlock int, ok bool) {
	if w.inBlock == 0 {
		return nil, 0, false
	}
	return w.flush()
}

// BlockReader decodes one block at a time. Callers locate the right block
// via the block index sidecar, then hand its raw bytes to NewBlockReader.
type BlockReader struct {
	dec *Decoder
}

// NewBlockReader wraps one block's raw bytes for decoding.
func NewBlockReader(block []byte) *BlockReader {
	return &BlockReader{dec: NewDecoder(block)}
}

// ScaledValue returns the scaled code value used to find which branch was
// coded, the same name coding.Decoder uses so a SquID's decode path can
// drive either one interchangeably.
func (r *BlockReader) ScaledValue(total uint32) uint32 { return r.dec.ScaledValue(total) }

// Consume narrows the decoder's range to the located Interval.
func (r *BlockReader) Consume(iv Interval) error { return r.dec.Consume(iv) }

func (r *BlockReader) String() string {
	return fmt.Sprintf("BlockReader{bitPos=%d}", r.dec.bitPos)
}
