// Package config loads the schema configuration file: attribute types,
// per-column error tolerance, and learner knobs (block size, delayed-
// coding precision threshold, skip_model_learning). This is deliberately
// thin glue per the spec's scope note - parsing is all it does.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/YimingQiao/blitzcrank/berrors"
	"github.com/YimingQiao/blitzcrank/schema"
)

// Column describes one schema column's declared type and tolerance.
type Column struct {
	Type string  `json:"type"`
	Err  float64 `json:"err,omitempty"`
}

// JSONLeaf describes one JSON leaf path and its declared type(s).
type JSONLeaf struct {
	Path  []string `json:"path"`
	Types []string `json:"types"`
	Err   float64  `json:"err,omitempty"`
}

// Config is the root schema configuration document.
type Config struct {
	Columns           []Column   `json:"columns,omitempty"`
	JSONLeaves        []JSONLeaf `json:"json_leaves,omitempty"`
	BlockSize         int        `json:"block_size,omitempty"`
	DelayedCoding     int        `json:"delayed_coding,omitempty"`
	SkipModelLearning bool       `json:"skip_model_learning,omitempty"`
	MarkovOrder       int        `json:"markov_order,omitempty"`
	AREOrder          int        `json:"ar_order,omitempty"`
}

// Load reads and parses a YAML (or JSON, since YAML is a superset) schema
// config file from path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, berrors.IO(fmt.Sprintf("read config %s", path), err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, berrors.SchemaViolation(fmt.Sprintf("parse config %s: %v", path, err))
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 1
	}
	if cfg.DelayedCoding <= 0 {
		cfg.DelayedCoding = 24
	}
	if cfg.MarkovOrder < 0 || cfg.MarkovOrder > 2 {
		cfg.MarkovOrder = 1
	}
	return &cfg, nil
}

// Schema converts the column declarations into a schema.Schema, returning a
// SchemaViolation error for any unrecognized type token.
func (c *Config) Schema() (schema.Schema, error) {
	types := make([]schema.AttrType, len(c.Columns))
	for i, col := range c.Columns {
		at, err := schema.ParseAttrType(col.Type)
		if err != nil {
			return schema.Schema{}, berrors.SchemaViolation(err.Error())
		}
		types[i] = at
	}
	return schema.NewSchema(types...), nil
}

// Tolerances returns each column's declared allowed error, in schema order.
func (c *Config) Tolerances() []float64 {
	errs := make([]float64, len(c.Columns))
	for i, col := range c.Columns {
		errs[i] = col.Err
	}
	return errs
}
