package squid

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/axiomhq/fsst"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/numeric"
)

// delimiterAlphabet is the fixed set of characters the sentence splitter
// recognizes (§4.8 step 2).
const delimiterAlphabet = "/ #-_."

// rank1Delims are run-length-collapsed before the rank-2 split.
const rank1Delims = "/ #"

// StringModel is the composite string SquID: sentence splitting for
// dictionary admission, a whole-value dict-hit/literal branch, and a
// Markov character model over literal bytes.
//
// The ring-buffer local-dictionary delta branch is deliberately not
// implemented: its hit rate depends on the actual temporal order values
// arrive in, which Feed's aggregate (value, count) signature doesn't
// preserve, so there is no way to compute its branch probabilities from
// training data alone.
type StringModel struct {
	wordCounts   map[string]uint64
	phraseCounts map[string]uint64
	valueCounts  map[string]uint64 // whole-value frequency, for the dict-hit/literal branch split
	globalDict   []string
	dictIndex    map[string]int
	dictTable    *fsst.Table // trained over the admitted dictionary entries
	markov       *markovChar

	totalWords  int
	totalValues int
	cost        float64

	// Coding tables, built by EndOfData from the counts above. branchTable
	// picks dict-hit vs. literal for one whole value; dictHitTable picks
	// which dictionary entry a hit refers to; lengthTable/byteTables code a
	// literal's byte length and byte-by-byte content, the latter
	// conditioned on markov's per-context histories with a global fallback
	// for contexts seen too rarely to earn their own table.
	branchTable  *coding.CumTable
	dictHitTable *coding.CumTable
	lengthTable  *coding.CumTable
	byteDefault  *coding.CumTable
	byteByCtx    map[string]*coding.CumTable
	ctxOrder     []string
}

// literalLenCap bounds the directly-coded literal length; longer values
// escape to a raw 32-bit length instead of growing the length table.
const literalLenCap = 256

// minContextSamples is the minimum observation count a Markov context needs
// before it earns its own byte table instead of falling back to byteDefault.
const minContextSamples = 20

// markovChar is a character-level Markov model of configurable history
// length (0, 1, or 2), used to code the literal path's character stream.
type markovChar struct {
	order  int
	counts map[string]map[byte]uint64
}

func newMarkovChar(order int) *markovChar {
	return &markovChar{order: order, counts: make(map[string]map[byte]uint64)}
}

func (mc *markovChar) feed(s string) {
	for i := 0; i < len(s); i++ {
		ctx := mc.context(s, i)
		row, ok := mc.counts[ctx]
		if !ok {
			row = make(map[byte]uint64)
			mc.counts[ctx] = row
		}
		row[s[i]]++
	}
}

func (mc *markovChar) context(s string, i int) string {
	start := i - mc.order
	if start < 0 {
		start = 0
	}
	return s[start:i]
}

// NewStringModel builds an empty string model with a Markov order in
// {0,1,2} (§4.8).
func NewStringModel(markovOrder int) *StringModel {
	return &StringModel{
		wordCounts:   make(map[string]uint64),
		phraseCounts: make(map[string]uint64),
		valueCounts:  make(map[string]uint64),
		dictIndex:    make(map[string]int),
		markov:       newMarkovChar(markovOrder),
	}
}

// Feed incorporates one training string: splits it into words, tallies word
// and phrase frequencies for the global-dictionary admission decision, tallies
// the whole value for the dict-hit/literal branch split, and feeds the
// Markov character model over the value's raw bytes (the granularity the
// literal encode path actually codes at).
func (m *StringModel) Feed(s string, count int) {
	m.totalValues += count
	m.valueCounts[s] += uint64(count)
	m.markov.feed(s)
	words := splitSentence(s)
	m.totalWords += len(words) * count
	for i, w := range words {
		m.wordCounts[w] += uint64(count)
		if i+1 < len(words) {
			phrase := w + " " + words[i+1]
			m.phraseCounts[phrase] += uint64(count)
		}
	}
}

// splitSentence implements §4.8 step 2: run-length-collapse rank-1
// delimiters, then split remaining segments on rank-2 delimiters including
// letter/digit and case transitions.
func splitSentence(s string) []string {
	collapsed := collapseRank1(s)
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(collapsed)
	for i, r := range runes {
		if strings.ContainsRune(delimiterAlphabet, r) {
			flush()
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			if isTransition(prev, r) {
				flush()
			}
		}
		cur.WriteRune(r)
	}
	flush()
	return words
}

func collapseRank1(s string) string {
	var b strings.Builder
	var lastWasDelim bool
	for _, r := range s {
		isDelim := strings.ContainsRune(rank1Delims, r)
		if isDelim && lastWasDelim {
			continue
		}
		b.WriteRune(r)
		lastWasDelim = isDelim
	}
	return b.String()
}

func isTransition(prev, cur rune) bool {
	prevDigit, curDigit := isDigit(prev), isDigit(cur)
	prevUpper, curUpper := isUpper(prev), isUpper(cur)
	prevLower, curLower := isLower(prev), isLower(cur)
	if prevDigit != curDigit {
		return true
	}
	if prevLower && curUpper {
		return true
	}
	return false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

// EndOfData admits words and phrases into the global dictionary per §4.8's
// frequency thresholds, decrementing constituent word counts for admitted
// phrases so dictionary weight isn't double-counted, then trains an FSST
// symbolizer over the admitted entries for the dictionary's own storage.
func (m *StringModel) EndOfData() {
	type cand struct {
		word  string
		count uint64
	}
	var phrases []cand
	for p, c := range m.phraseCounts {
		if len(p) >= 3 && c > 10 {
			phrases = append(phrases, cand{p, c})
		}
	}
	sort.Slice(phrases, func(i, j int) bool { return phrases[i].count > phrases[j].count })
	for _, ph := range phrases {
		parts := strings.SplitN(ph.word, " ", 2)
		if len(parts) != 2 {
			continue
		}
		if m.wordCounts[parts[0]] >= ph.count && m.wordCounts[parts[1]] >= ph.count {
			m.wordCounts[parts[0]] -= ph.count
			m.wordCounts[parts[1]] -= ph.count
			m.admit(ph.word)
		}
	}
	for w, c := range m.wordCounts {
		minCount := uint64(10)
		if len(w) > 3 {
			minCount = 3
		}
		if c > minCount {
			m.admit(w)
		}
	}
	sort.Strings(m.globalDict)
	m.dictIndex = make(map[string]int, len(m.globalDict))
	for i, w := range m.globalDict {
		m.dictIndex[w] = i
	}
	if len(m.globalDict) > 0 {
		corpus := make([][]byte, len(m.globalDict))
		for i, w := range m.globalDict {
			corpus[i] = []byte(w)
		}
		m.dictTable = fsst.Train(corpus)
	}
	m.buildCodingTables()
	m.cost = m.estimateCost()
}

// buildCodingTables derives the branch/dict-hit/length/byte tables that
// Encode and Decode drive, from the aggregate counts Feed collected. Every
// table here is a pure function of counts already gathered, not of feed
// order, so it needs no second pass over the original input stream.
func (m *StringModel) buildCodingTables() {
	var dictHit, literal uint64
	dictWeights := make([]uint64, len(m.globalDict))
	for v, c := range m.valueCounts {
		if idx, ok := m.dictIndex[v]; ok {
			dictHit += c
			dictWeights[idx] += c
		} else {
			literal += c
		}
	}
	if w, err := numeric.Quantize([]uint64{dictHit, literal}, 16); err == nil {
		m.branchTable = coding.NewCumTable(w)
	}
	if len(dictWeights) > 0 {
		if w, err := numeric.Quantize(dictWeights, 16); err == nil {
			m.dictHitTable = coding.NewCumTable(w)
		}
	}

	lenCounts := make([]uint64, literalLenCap+1) // last bucket is the overflow escape
	for v, c := range m.valueCounts {
		if _, ok := m.dictIndex[v]; ok {
			continue
		}
		n := len(v)
		if n >= literalLenCap {
			n = literalLenCap
		}
		lenCounts[n] += c
	}
	if w, err := numeric.Quantize(lenCounts, 16); err == nil {
		m.lengthTable = coding.NewCumTable(w)
	}

	defaultCounts := make([]uint64, 256)
	var ctxTotals []string
	ctxCount := make(map[string]uint64)
	for ctx, row := range m.markov.counts {
		var total uint64
		for b, c := range row {
			defaultCounts[b] += c
			total += c
		}
		ctxCount[ctx] = total
		ctxTotals = append(ctxTotals, ctx)
	}
	if w, err := numeric.Quantize(defaultCounts, 16); err == nil {
		m.byteDefault = coding.NewCumTable(w)
	}
	sort.Strings(ctxTotals)
	m.byteByCtx = make(map[string]*coding.CumTable)
	for _, ctx := range ctxTotals {
		if ctxCount[ctx] < minContextSamples {
			continue
		}
		counts := make([]uint64, 256)
		for b, c := range m.markov.counts[ctx] {
			counts[b] = c
		}
		w, err := numeric.Quantize(counts, 16)
		if err != nil {
			continue
		}
		m.byteByCtx[ctx] = coding.NewCumTable(w)
		m.ctxOrder = append(m.ctxOrder, ctx)
	}
}

func (m *StringModel) admit(w string) {
	if _, ok := m.dictIndex[w]; ok {
		return
	}
	m.dictIndex[w] = len(m.globalDict)
	m.globalDict = append(m.globalDict, w)
}

// DictIndex returns the global dictionary index for w, if admitted.
func (m *StringModel) DictIndex(w string) (int, bool) {
	i, ok := m.dictIndex[w]
	return i, ok
}

// GlobalDict exposes the admitted dictionary in stable order.
func (m *StringModel) GlobalDict() []string { return m.globalDict }

func (m *StringModel) Cost() float64 { return m.cost }

func (m *StringModel) DescriptionLength() int {
	n := 0
	for _, w := range m.globalDict {
		n += len(w) + 1
	}
	return n * 8
}

// WriteModel serializes the model: the FSST symbol table (u32 length, then
// its bytes; length 0 when there is none), the global dictionary (u32 entry
// count, then each entry as a u32 length and its bytes, FSST-encoded when a
// table was written), the branch, dict-hit, length and default byte weight
// tables, and the Markov contexts (u32 count, then each context string and
// its byte weight table).
func (m *StringModel) WriteModel(w *bitio.Writer) {
	tableBytes := []byte{}
	if m.dictTable != nil {
		if b, err := m.dictTable.MarshalBinary(); err == nil {
			tableBytes = b
		}
	}
	w.WriteU32(uint32(len(tableBytes)))
	for _, b := range tableBytes {
		w.WriteByte(b)
	}
	w.WriteU32(uint32(len(m.globalDict)))
	for _, entry := range m.globalDict {
		payload := []byte(entry)
		if m.dictTable != nil && len(tableBytes) > 0 {
			payload = m.dictTable.EncodeAll([]byte(entry))
		}
		w.WriteU32(uint32(len(payload)))
		for _, b := range payload {
			w.WriteByte(b)
		}
	}
	writeCumWeights(w, m.branchTable, 2)
	writeCumWeights(w, m.dictHitTable, len(m.globalDict))
	writeCumWeights(w, m.lengthTable, literalLenCap+1)
	writeCumWeights(w, m.byteDefault, 256)
	w.WriteU32(uint32(len(m.ctxOrder)))
	for _, ctx := range m.ctxOrder {
		writeLenPrefixedString(w, ctx)
		writeCumWeights(w, m.byteByCtx[ctx], 256)
	}
}

// writeCumWeights writes n branch weights from table, or n zero weights if
// table is nil (every row of the training data collapsed into one branch),
// using the same 65536-as-65535 sentinel every other model's wire format
// uses.
func writeCumWeights(w *bitio.Writer, table *coding.CumTable, n int) {
	for i := 0; i < n; i++ {
		v := uint32(0)
		if table != nil {
			v = table.Interval(i).Width()
		}
		if v == 65536 {
			v = 65535
		}
		w.WriteU16(uint16(v))
	}
}

func readCumWeights(r *bitio.Reader, n int) (*coding.CumTable, error) {
	if n == 0 {
		return nil, nil
	}
	weights := make([]uint32, n)
	for i := range weights {
		v, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("squid: read string model weight %d: %w", i, err)
		}
		weights[i] = uint32(v)
		if weights[i] == 65535 {
			weights[i] = 65536
		}
	}
	return coding.NewCumTable(weights), nil
}

// estimateCost computes the estimated literal + dictionary coding cost over the
// observed values, the learner's figure of merit for a String column.
func (m *StringModel) estimateCost() float64 {
	var bits float64
	for v, c := range m.valueCounts {
		idx, isDict := m.dictIndex[v]
		if isDict && m.branchTable != nil && m.dictHitTable != nil {
			bits += float64(c) * (branchBits(m.branchTable, 0) + branchBits(m.dictHitTable, idx))
			continue
		}
		bits += float64(c) * m.literalBits(v)
	}
	return bits + float64(m.DescriptionLength())
}

func branchBits(table *coding.CumTable, idx int) float64 {
	if table == nil {
		return 0
	}
	w := table.Interval(idx).Width()
	if w == 0 {
		return 0
	}
	return -log2(float64(w) / float64(table.Total()))
}

func (m *StringModel) literalBits(s string) float64 {
	n := len(s)
	lenIdx := n
	if lenIdx >= literalLenCap {
		lenIdx = literalLenCap
	}
	bits := float64(0)
	if m.branchTable != nil {
		bits += branchBits(m.branchTable, 1)
	}
	if m.lengthTable != nil {
		bits += branchBits(m.lengthTable, lenIdx)
	}
	if n >= literalLenCap {
		bits += 32
	}
	for i := 0; i < n; i++ {
		ctx := m.markov.context(s, i)
		table := m.byteDefault
		if t, ok := m.byteByCtx[ctx]; ok {
			table = t
		}
		bits += branchBits(table, int(s[i]))
	}
	return bits
}

// Encode codes one whole string value: a dict-hit branch referencing the
// global dictionary by frequency-weighted index, or a literal branch coding
// length then each byte through the context-conditioned Markov tables.
func (m *StringModel) Encode(enc *coding.Encoder, s string) error {
	idx, isDict := m.dictIndex[s]
	if isDict && m.branchTable != nil && m.dictHitTable != nil {
		if err := enc.Encode(m.branchTable.Interval(0)); err != nil {
			return fmt.Errorf("squid: encode string dict-hit branch: %w", err)
		}
		if err := enc.Encode(m.dictHitTable.Interval(idx)); err != nil {
			return fmt.Errorf("squid: encode string dict index: %w", err)
		}
		return nil
	}
	if m.branchTable != nil {
		if err := enc.Encode(m.branchTable.Interval(1)); err != nil {
			return fmt.Errorf("squid: encode string literal branch: %w", err)
		}
	}
	return m.encodeLiteral(enc, s)
}

func (m *StringModel) encodeLiteral(enc *coding.Encoder, s string) error {
	n := len(s)
	lenIdx := n
	if lenIdx >= literalLenCap {
		lenIdx = literalLenCap
	}
	if m.lengthTable != nil {
		if err := enc.Encode(m.lengthTable.Interval(lenIdx)); err != nil {
			return fmt.Errorf("squid: encode string literal length: %w", err)
		}
	}
	if n >= literalLenCap {
		if err := enc.Encode(coding.Interval{CumLow: uint32(n) & 0xffff, CumHigh: (uint32(n) & 0xffff) + 1, Total: 65536}); err != nil {
			return fmt.Errorf("squid: encode string overflow length: %w", err)
		}
	}
	for i := 0; i < n; i++ {
		ctx := m.markov.context(s, i)
		table := m.byteDefault
		if t, ok := m.byteByCtx[ctx]; ok {
			table = t
		}
		if table == nil {
			continue
		}
		if err := enc.Encode(table.Interval(int(s[i]))); err != nil {
			return fmt.Errorf("squid: encode string literal byte %d: %w", i, err)
		}
	}
	return nil
}

// Decode reconstructs one whole string value coded by Encode.
func (m *StringModel) Decode(dec *coding.Decoder) (string, error) {
	branch := 0
	if m.branchTable != nil {
		code := dec.ScaledValue(m.branchTable.Total())
		branch = m.branchTable.Locate(code)
		if err := dec.Consume(m.branchTable.Interval(branch)); err != nil {
			return "", fmt.Errorf("squid: consume string branch: %w", err)
		}
	}
	if branch == 0 && m.dictHitTable != nil {
		code := dec.ScaledValue(m.dictHitTable.Total())
		idx := m.dictHitTable.Locate(code)
		if err := dec.Consume(m.dictHitTable.Interval(idx)); err != nil {
			return "", fmt.Errorf("squid: consume string dict index: %w", err)
		}
		if idx >= 0 && idx < len(m.globalDict) {
			return m.globalDict[idx], nil
		}
	}
	return m.decodeLiteral(dec)
}

func (m *StringModel) decodeLiteral(dec *coding.Decoder) (string, error) {
	n := 0
	if m.lengthTable != nil {
		code := dec.ScaledValue(m.lengthTable.Total())
		n = m.lengthTable.Locate(code)
		if err := dec.Consume(m.lengthTable.Interval(n)); err != nil {
			return "", fmt.Errorf("squid: consume string literal length: %w", err)
		}
	}
	if n >= literalLenCap {
		code := dec.ScaledValue(65536)
		if err := dec.Consume(coding.Interval{CumLow: code, CumHigh: code + 1, Total: 65536}); err != nil {
			return "", fmt.Errorf("squid: consume string overflow length: %w", err)
		}
		n = int(code)
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		ctx := m.markov.context(string(buf[:i]), i)
		table := m.byteDefault
		if t, ok := m.byteByCtx[ctx]; ok {
			table = t
		}
		if table == nil {
			buf[i] = 0
			continue
		}
		code := dec.ScaledValue(table.Total())
		b := table.Locate(code)
		if err := dec.Consume(table.Interval(b)); err != nil {
			return "", fmt.Errorf("squid: consume string literal byte %d: %w", i, err)
		}
		buf[i] = byte(b)
	}
	return string(buf), nil
}

// ReadStringModel reconstructs a StringModel from WriteModel's serialized
// form: the global dictionary followed by the coding tables. markovOrder
// must match the order the model was trained with (a config-level knob, not
// itself part of the wire format) since the literal byte tables are keyed by
// context strings of that exact length.
func ReadStringModel(r *bitio.Reader, markovOrder int) (*StringModel, error) {
	tableLen, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("squid: read string fsst table length: %w", err)
	}
	tableBytes := make([]byte, tableLen)
	for i := range tableBytes {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("squid: read string fsst table: %w", err)
		}
		tableBytes[i] = b
	}
	var dictTable *fsst.Table
	if len(tableBytes) > 0 {
		dictTable = &fsst.Table{}
		if err := dictTable.UnmarshalBinary(tableBytes); err != nil {
			return nil, fmt.Errorf("squid: unmarshal string fsst table: %w", err)
		}
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("squid: read string dictionary count: %w", err)
	}
	m := &StringModel{dictIndex: make(map[string]int, n), byteByCtx: make(map[string]*coding.CumTable), dictTable: dictTable}
	m.globalDict = make([]string, n)
	for i := range m.globalDict {
		plen, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("squid: read string dictionary entry %d length: %w", i, err)
		}
		payload := make([]byte, plen)
		for j := range payload {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("squid: read string dictionary entry %d: %w", i, err)
			}
			payload[j] = b
		}
		if dictTable != nil {
			m.globalDict[i] = string(dictTable.DecodeAll(payload))
		} else {
			m.globalDict[i] = string(payload)
		}
		m.dictIndex[m.globalDict[i]] = i
	}
	if m.branchTable, err = readCumWeights(r, 2); err != nil {
		return nil, err
	}
	if m.dictHitTable, err = readCumWeights(r, len(m.globalDict)); err != nil {
		return nil, err
	}
	if m.lengthTable, err = readCumWeights(r, literalLenCap+1); err != nil {
		return nil, err
	}
	if m.byteDefault, err = readCumWeights(r, 256); err != nil {
		return nil, err
	}
	ctxCount, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("squid: read string context count: %w", err)
	}
	for i := uint32(0); i < ctxCount; i++ {
		ctx, err := readLenPrefixedString(r)
		if err != nil {
			return nil, fmt.Errorf("squid: read string context %d: %w", i, err)
		}
		table, err := readCumWeights(r, 256)
		if err != nil {
			return nil, err
		}
		m.byteByCtx[ctx] = table
		m.ctxOrder = append(m.ctxOrder, ctx)
	}
	m.markov = newMarkovChar(markovOrder)
	return m, nil
}

func log2(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log2(x)
}
