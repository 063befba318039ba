// Package berrors defines the compressor's typed error taxonomy (§7). Every
// fatal condition the driver surfaces is one of these, so callers can branch
// on error class with errors.Is/As instead of string matching.
package berrors

import "fmt"

// Class tags which of the spec's §7 error categories an error belongs to.
type Class int

const (
	ClassIO Class = iota
	ClassSchemaViolation
	ClassBufferOverflow
	ClassCorruptData
)

func (c Class) String() string {
	switch c {
	case ClassIO:
		return "io"
	case ClassSchemaViolation:
		return "schema-violation"
	case ClassBufferOverflow:
		return "buffer-overflow"
	case ClassCorruptData:
		return "corrupt-data"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Class so callers can dispatch on
// error kind without parsing text.
type Error struct {
	Class Class
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IO wraps an error from a file or stream operation.
func IO(msg string, err error) error { return &Error{Class: ClassIO, Msg: msg, Err: err} }

// SchemaViolation reports a fatal mismatch between data and declared schema
// (column count mismatch, unknown attribute token, JSON leaf overflow).
func SchemaViolation(msg string) error { return &Error{Class: ClassSchemaViolation, Msg: msg} }

// BufferOverflow reports an internal fixed-capacity buffer exceeded.
func BufferOverflow(msg string) error { return &Error{Class: ClassBufferOverflow, Msg: msg} }

// CorruptData reports malformed compressed input (bad magic, truncated
// sidecar, inconsistent block index).
func CorruptData(msg string) error { return &Error{Class: ClassCorruptData, Msg: msg} }
