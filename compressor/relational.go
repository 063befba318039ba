package compressor

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/berrors"
	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/blockindex"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/config"
	"github.com/YimingQiao/blitzcrank/learner"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// relationalMagic tags the file as a relational compressed stream, so
// Decompress fails fast (corrupt-data) on a JSON-mode file instead of
// silently misparsing its header.
const relationalMagic = 0x424c5a31 // "BLZ1"

// sampleSize bounds the stage-0 structure-discovery sample (§4.10's "sample
// stream"); the teacher's own sample-then-refit split (NumEstSample in
// squid/numerical.go) uses the same order-of-magnitude bound for its own
// reservoir, so this reuses that scale rather than inventing a new one.
const sampleSize = 5000

// defaultBinSize is used for numerical/time-series columns whose declared
// tolerance is zero or absent.
const defaultBinSize = 1.0

// columnStats carries the data-dependent facts a column's interpreter needs
// (enum range, and for Int columns the zero-basing shift) that the config
// file alone can't supply - §6 doesn't name a spot for these explicitly, so
// they're carried as a per-column header between the tuple count and the
// attribute ordering, the natural place given everything after it needs the
// registry they populate already built.
type columnStats struct {
	attrType schema.AttrType
	catRange int   // Categorical / CategoricalMarkov distinct outcome count
	intRange int   // Int distinct outcome count (max-min+1)
	intMin   int32 // Int column's observed minimum, subtracted at ingestion
}

func scanColumnStats(s schema.Schema, rows []schema.Tuple) []columnStats {
	width := s.Width()
	stats := make([]columnStats, width)
	for i, at := range s.Types {
		stats[i].attrType = at
	}
	haveCat := make([]bool, width)
	haveInt := make([]bool, width)
	minI := make([]int32, width)
	maxI := make([]int32, width)
	maxCat := make([]int32, width)
	for _, t := range rows {
		for i, at := range s.Types {
			switch at {
			case schema.Categorical, schema.CategoricalMarkov:
				v := t.Values[i].Int()
				if !haveCat[i] || v > maxCat[i] {
					maxCat[i] = v
				}
				haveCat[i] = true
			case schema.Int:
				v := t.Values[i].Int()
				if !haveInt[i] {
					minI[i], maxI[i] = v, v
					haveInt[i] = true
					continue
				}
				if v < minI[i] {
					minI[i] = v
				}
				if v > maxI[i] {
					maxI[i] = v
				}
			}
		}
	}
	for i, at := range s.Types {
		switch at {
		case schema.Categorical, schema.CategoricalMarkov:
			stats[i].catRange = int(maxCat[i]) + 1
			if stats[i].catRange < 1 {
				stats[i].catRange = 1
			}
		case schema.Int:
			stats[i].intMin = minI[i]
			stats[i].intRange = int(maxI[i]-minI[i]) + 1
			if stats[i].intRange < 1 {
				stats[i].intRange = 1
			}
		}
	}
	return stats
}

// normalizeInts returns a copy of rows with every Int column shifted to be
// zero-based, the form squid.IntInterpreter.Encode and every attrModel
// assume tuples already arrive in (the shift happens once here, at
// ingestion, rather than inside Encode - see DESIGN.md).
func normalizeInts(s schema.Schema, rows []schema.Tuple, stats []columnStats) []schema.Tuple {
	out := make([]schema.Tuple, len(rows))
	for ri, t := range rows {
		nt := schema.Tuple{Values: append([]schema.Value(nil), t.Values...)}
		for i, at := range s.Types {
			if at == schema.Int {
				nt.Values[i] = schema.IntValue(t.Values[i].Int() - stats[i].intMin)
			}
		}
		out[ri] = nt
	}
	return out
}

// buildRegistry registers the interpreter appropriate to each column's
// attribute type, per §4.10's enum-interpretable predictor rule.
func buildRegistry(s schema.Schema, stats []columnStats) *registry.Registry {
	reg := registry.NewRegistry()
	catRanges := make([]int, s.Width())
	intRanges := make([]int, s.Width())
	intMins := make([]int32, s.Width())
	for i, st := range stats {
		catRanges[i] = st.catRange
		intRanges[i] = st.intRange
		intMins[i] = st.intMin
	}
	catInterp := &squid.CategoricalInterpreter{Ranges: catRanges}
	intInterp := &squid.IntInterpreter{Ranges: intRanges, Mins: intMins}
	nonEnum := squid.NonEnumInterpreter{}
	for _, at := range []schema.AttrType{schema.Categorical, schema.CategoricalMarkov} {
		reg.Register(at, nil, catInterp)
	}
	reg.Register(schema.Int, nil, intInterp)
	for _, at := range []schema.AttrType{schema.Real, schema.String, schema.TimeSeries} {
		reg.Register(at, nil, nonEnum)
	}
	return reg
}

func binSizeFor(cfg *config.Config, target int) float64 {
	tol := cfg.Tolerances()
	if target < len(tol) && tol[target] > 0 {
		return tol[target]
	}
	return defaultBinSize
}

// newAttrModelFor dispatches on the target column's attribute type to build
// a fresh, untrained attrModel, or (nil, false) if predictors are
// infeasible for this family (mirroring registry.ModelCreator.CreateModel's
// contract, without needing a ModelCreator implementation since learner
// only calls through the ModelBuilder closure - see DESIGN.md).
func newAttrModelFor(reg *registry.Registry, s schema.Schema, predictors []int, target int, stats []columnStats, cfg *config.Config) (attrModel, bool) {
	switch s.Types[target] {
	case schema.Categorical:
		return newCategoricalAttrModel(reg, s, predictors, target, stats[target].catRange), true
	case schema.Int:
		return newCategoricalAttrModel(reg, s, predictors, target, stats[target].intRange), true
	case schema.CategoricalMarkov:
		if len(predictors) > 0 {
			return nil, false
		}
		return newMarkovAttrModel(reg, s, target, stats[target].catRange), true
	case schema.Real:
		return newNumericalAttrModel(reg, s, predictors, target, binSizeFor(cfg, target), false), true
	case schema.String:
		if len(predictors) > 0 {
			return nil, false
		}
		return newStringAttrModel(target, cfg.MarkovOrder), true
	case schema.TimeSeries:
		if len(predictors) > 0 {
			return nil, false
		}
		return newTimeSeriesAttrModel(target, cfg.AREOrder, binSizeFor(cfg, target)), true
	default:
		return nil, false
	}
}

func writePredictorList(w *bitio.Writer, predictors []int) {
	w.WriteBits(uint32(len(predictors)), 8)
	for _, p := range predictors {
		w.WriteU16(uint16(p))
	}
}

func readPredictorList(r *bitio.Reader) ([]int, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	predictors := make([]int, n)
	for i := range predictors {
		v, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		predictors[i] = int(v)
	}
	return predictors, nil
}

func toSamples(rows []schema.Tuple) []learner.Sample {
	samples := make([]learner.Sample, len(rows))
	for i, t := range rows {
		samples[i] = learner.Sample{Tuple: t, Count: 1}
	}
	return samples
}

// CompressRelational builds the two-stage learned plan over rows, refits
// final models on the full dataset, and serializes the file layout §6
// describes: header (magic, tuple count, per-column stats, attribute
// ordering), serialized model tree, block-segmented data region, and the
// blockindex trailer.
func CompressRelational(s schema.Schema, rows []schema.Tuple, cfg *config.Config) ([]byte, error) {
	if err := validateRows(s, rows); err != nil {
		return nil, err
	}
	stats := scanColumnStats(s, rows)
	norm := normalizeInts(s, rows, stats)
	reg := buildRegistry(s, stats)

	sample := norm
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	samples := toSamples(sample)

	build := func(reg *registry.Registry, s schema.Schema, predictors []int, target int, samples []learner.Sample) (float64, bool) {
		m, ok := newAttrModelFor(reg, s, predictors, target, stats, cfg)
		if !ok {
			return 0, false
		}
		for _, smp := range samples {
			m.Feed(smp.Tuple, smp.Count)
		}
		m.EndOfData()
		return m.Cost(), true
	}

	plan := learner.Learn(reg, s, samples, build, cfg.SkipModelLearning)

	models := make([]attrModel, s.Width())
	for _, target := range plan.Order {
		m, ok := newAttrModelFor(reg, s, plan.Predictors[target], target, stats, cfg)
		if !ok {
			return nil, berrors.CorruptData(fmt.Sprintf("compressor: no model family for column %d", target))
		}
		models[target] = m
	}
	fullSamples := toSamples(norm)
	for _, target := range plan.Order {
		for _, smp := range fullSamples {
			models[target].Feed(smp.Tuple, smp.Count)
		}
		models[target].EndOfData()
	}

	header := bitio.NewWriter()
	header.WriteU32Bytes(relationalMagic)
	header.WriteU32Bytes(uint32(len(rows)))
	for _, st := range stats {
		header.WriteByte(byte(st.attrType))
		switch st.attrType {
		case schema.Categorical, schema.CategoricalMarkov:
			header.WriteU16(uint16(st.catRange))
		case schema.Int:
			header.WriteU16(uint16(st.intRange))
			header.WriteU32(uint32(st.intMin))
		}
	}
	for _, target := range plan.Order {
		header.WriteU16(uint16(target))
	}
	for _, target := range plan.Order {
		// squid.NumericalModel.WriteModel, unlike the categorical wire
		// format, doesn't carry its own predictor list (§6 names predictor
		// indices only for the categorical sub-model), so the driver writes
		// them here for Real columns; every other family either
		// self-serializes (Categorical/Int/CategoricalMarkov) or never
		// takes predictors (String/TimeSeries).
		if s.Types[target] == schema.Real {
			writePredictorList(header, plan.Predictors[target])
		}
		models[target].WriteModel(header)
	}
	headerBytes := header.Finish()

	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = 1
	}
	var data []byte
	idx := blockindex.NewWriter()
	enc := coding.NewEncoder()
	inBlock := 0
	flush := func() error {
		if inBlock == 0 {
			return nil
		}
		bytes := enc.Finish()
		if err := idx.Append(len(bytes)*8, inBlock); err != nil {
			return fmt.Errorf("compressor: block index overflow: %w", err)
		}
		data = append(data, bytes...)
		enc = coding.NewEncoder()
		inBlock = 0
		for _, target := range plan.Order {
			if rs, ok := models[target].(resettable); ok {
				rs.Reset()
			}
		}
		return nil
	}
	for _, target := range plan.Order {
		if rs, ok := models[target].(resettable); ok {
			rs.Reset()
		}
	}
	for _, t := range norm {
		for _, target := range plan.Order {
			if err := models[target].Encode(enc, t); err != nil {
				return nil, fmt.Errorf("compressor: encode row: %w", err)
			}
		}
		inBlock++
		if inBlock == blockSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	trailer := idx.Finalize()
	out := make([]byte, 0, len(headerBytes)+len(data)+len(trailer))
	out = append(out, headerBytes...)
	out = append(out, data...)
	out = append(out, trailer...)
	return out, nil
}

func validateRows(s schema.Schema, rows []schema.Tuple) error {
	for i, t := range rows {
		if err := s.Validate(t); err != nil {
			return berrors.SchemaViolation(fmt.Sprintf("row %d: %v", i, err))
		}
	}
	return nil
}

// DecompressRelational is CompressRelational's inverse: it rebuilds the
// registry from the per-column header, reconstructs each column's model via
// the read*AttrModel constructors, locates the blockindex trailer from the
// end of data, and decodes every block in order.
func DecompressRelational(s schema.Schema, data []byte, cfg *config.Config) ([]schema.Tuple, error) {
	r := bitio.NewReader(data)
	magic, err := r.ReadU32Bytes()
	if err != nil {
		return nil, berrors.CorruptData("read magic")
	}
	if magic != relationalMagic {
		return nil, berrors.CorruptData("not a relational compressed file")
	}
	tupleCount, err := r.ReadU32Bytes()
	if err != nil {
		return nil, berrors.CorruptData("read tuple count")
	}

	width := s.Width()
	stats := make([]columnStats, width)
	for i := range stats {
		b, err := r.ReadByte()
		if err != nil {
			return nil, berrors.CorruptData("read column attribute type")
		}
		stats[i].attrType = schema.AttrType(b)
		switch stats[i].attrType {
		case schema.Categorical, schema.CategoricalMarkov:
			v, err := r.ReadU16()
			if err != nil {
				return nil, berrors.CorruptData("read categorical range")
			}
			stats[i].catRange = int(v)
		case schema.Int:
			v, err := r.ReadU16()
			if err != nil {
				return nil, berrors.CorruptData("read int range")
			}
			stats[i].intRange = int(v)
			m, err := r.ReadU32()
			if err != nil {
				return nil, berrors.CorruptData("read int min")
			}
			stats[i].intMin = int32(m)
		}
	}
	reg := buildRegistry(s, stats)

	order := make([]int, width)
	for i := range order {
		v, err := r.ReadU16()
		if err != nil {
			return nil, berrors.CorruptData("read attribute order")
		}
		order[i] = int(v)
	}

	models := make([]attrModel, width)
	for _, target := range order {
		m, err := readAttrModelFor(r, reg, s, target, stats, cfg)
		if err != nil {
			return nil, err
		}
		models[target] = m
	}

	headerBits := r.Tell()
	if headerBits%8 != 0 {
		headerBits += 8 - headerBits%8
	}
	headerBytes := int(headerBits / 8)
	if headerBytes > len(data) {
		return nil, berrors.CorruptData("header overruns file")
	}

	idx, err := blockindex.Read(data[headerBytes:])
	if err != nil {
		return nil, fmt.Errorf("compressor: read block index: %w", err)
	}

	rows := make([]schema.Tuple, 0, tupleCount)
	dataRegion := data[headerBytes : len(data)-(idx.NumBlocks()*4+4)]
	var byteOff uint64
	for b := 0; b < idx.NumBlocks(); b++ {
		blockBits := idx.BitsPrefixAt(b+1) - idx.BitsPrefixAt(b)
		blockBytes := blockBits / 8
		if byteOff+blockBytes > uint64(len(dataRegion)) {
			return nil, berrors.CorruptData("block index overruns data region")
		}
		block := dataRegion[byteOff : byteOff+blockBytes]
		byteOff += blockBytes

		n := int(idx.TuplesPrefixAt(b+1) - idx.TuplesPrefixAt(b))
		dec := coding.NewDecoder(block)
		for i := 0; i < n; i++ {
			t := schema.NewTuple(width)
			for _, target := range order {
				if err := models[target].Decode(dec, &t); err != nil {
					return nil, fmt.Errorf("compressor: decode row: %w", err)
				}
			}
			rows = append(rows, denormalizeInts(s, t, stats))
		}
		for _, target := range order {
			if rs, ok := models[target].(resettable); ok {
				rs.Reset()
			}
		}
	}
	return rows, nil
}

func denormalizeInts(s schema.Schema, t schema.Tuple, stats []columnStats) schema.Tuple {
	for i, at := range s.Types {
		if at == schema.Int {
			t.Values[i] = schema.IntValue(t.Values[i].Int() + stats[i].intMin)
		}
	}
	return t
}

func readAttrModelFor(r *bitio.Reader, reg *registry.Registry, s schema.Schema, target int, stats []columnStats, cfg *config.Config) (attrModel, error) {
	switch s.Types[target] {
	case schema.Categorical, schema.Int:
		return readCategoricalAttrModel(r, reg, s, target)
	case schema.CategoricalMarkov:
		return readMarkovAttrModel(r, reg, s, target)
	case schema.Real:
		predictors, err := readPredictorList(r)
		if err != nil {
			return nil, fmt.Errorf("compressor: read numerical column %d predictors: %w", target, err)
		}
		return readNumericalAttrModel(r, reg, s, predictors, target, false)
	case schema.String:
		return readStringAttrModel(r, target, cfg.MarkovOrder)
	case schema.TimeSeries:
		return readTimeSeriesAttrModel(r, target, cfg.AREOrder, binSizeFor(cfg, target))
	default:
		return nil, berrors.CorruptData(fmt.Sprintf("compressor: unknown attribute type for column %d", target))
	}
}
