package compressor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/YimingQiao/blitzcrank/berrors"
	"github.com/YimingQiao/blitzcrank/schema"
)

// ReadCSV loads every row of a CSV file into tuples matching s, one column
// per schema position in file order. Categorical/Int columns are read as
// integer codes, Real/TimeSeries columns as floats, String columns verbatim.
func ReadCSV(path string, s schema.Schema) ([]schema.Tuple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, berrors.IO(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []schema.Tuple
	for lineNum := 1; ; lineNum++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, berrors.IO(fmt.Sprintf("read %s line %d", path, lineNum), err)
		}
		if len(record) < s.Width() {
			return nil, berrors.SchemaViolation(fmt.Sprintf("%s line %d: has %d columns, schema wants %d", path, lineNum, len(record), s.Width()))
		}
		t := schema.NewTuple(s.Width())
		for col, at := range s.Types {
			field := record[col]
			switch at {
			case schema.Categorical, schema.CategoricalMarkov, schema.Int:
				v, err := strconv.ParseInt(field, 10, 32)
				if err != nil {
					return nil, berrors.SchemaViolation(fmt.Sprintf("%s line %d col %d: %v", path, lineNum, col, err))
				}
				t.Values[col] = schema.IntValue(int32(v))
			case schema.Real, schema.TimeSeries:
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, berrors.SchemaViolation(fmt.Sprintf("%s line %d col %d: %v", path, lineNum, col, err))
				}
				t.Values[col] = schema.FloatValue(v)
			case schema.String:
				t.Values[col] = schema.StringValue(field)
			}
		}
		rows = append(rows, t)
	}
	return rows, nil
}

// WriteCSV writes rows to path in schema column order, one record per row.
func WriteCSV(path string, s schema.Schema, rows []schema.Tuple) error {
	f, err := os.Create(path)
	if err != nil {
		return berrors.IO(fmt.Sprintf("create %s", path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := make([]string, s.Width())
	for _, t := range rows {
		for col, at := range s.Types {
			v := t.Values[col]
			switch at {
			case schema.Categorical, schema.CategoricalMarkov, schema.Int:
				record[col] = strconv.FormatInt(int64(v.Int()), 10)
			case schema.Real, schema.TimeSeries:
				record[col] = strconv.FormatFloat(v.Float(), 'g', -1, 64)
			case schema.String:
				record[col] = v.Str()
			}
		}
		if err := w.Write(record); err != nil {
			return berrors.IO(fmt.Sprintf("write %s", path), err)
		}
	}
	w.Flush()
	return w.Error()
}
