// Package jsonmodel implements the JSON structural mirror-schema model
// (§4.11): a tree shaped like the declared leaf paths, where every node
// carries its own exist/type/array-size/value sub-models, traversed
// jointly with the document DOM via an explicit worklist so stack depth
// never grows with document depth.
package jsonmodel

import "encoding/json"

// DOMKind enumerates the JSON value kinds a DOMNode can be.
type DOMKind int

const (
	KindNull DOMKind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// DOMNode is the minimal read interface the traversal needs from a parsed
// JSON document. StdDOM below implements it over encoding/json's native
// map[string]interface{}/[]interface{} decoding, which is the third-party-
// DOM substitute the spec treats as an external collaborator.
type DOMNode interface {
	Kind() DOMKind
	Bool() bool
	Number() float64
	String() string
	Members() []string
	Get(name string) DOMNode
	Elements() []DOMNode
}

// StdDOM wraps a value produced by encoding/json.Unmarshal into
// interface{}.
type StdDOM struct{ v interface{} }

// ParseStdDOM decodes raw JSON into a StdDOM root.
func ParseStdDOM(raw []byte) (*StdDOM, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &StdDOM{v: v}, nil
}

func (d *StdDOM) Kind() DOMKind {
	switch d.v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case map[string]interface{}:
		return KindObject
	case []interface{}:
		return KindArray
	default:
		return KindNull
	}
}

func (d *StdDOM) Bool() bool      { b, _ := d.v.(bool); return b }
func (d *StdDOM) Number() float64 { f, _ := d.v.(float64); return f }
func (d *StdDOM) String() string  { s, _ := d.v.(string); return s }

func (d *StdDOM) Members() []string {
	m, ok := d.v.(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}

func (d *StdDOM) Get(name string) DOMNode {
	m, ok := d.v.(map[string]interface{})
	if !ok {
		return &StdDOM{v: nil}
	}
	return &StdDOM{v: m[name]}
}

func (d *StdDOM) Elements() []DOMNode {
	a, ok := d.v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]DOMNode, len(a))
	for i, e := range a {
		out[i] = &StdDOM{v: e}
	}
	return out
}
