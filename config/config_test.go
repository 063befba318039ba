package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/schema"
)

func TestLoadAndSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	yamlBody := "columns:\n  - type: categorical\n    err: 0\n  - type: real\n    err: 0.5\nblock_size: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.BlockSize)

	s, err := cfg.Schema()
	require.NoError(t, err)
	require.Equal(t, schema.NewSchema(schema.Categorical, schema.Real), s)
	require.Equal(t, []float64{0, 0.5}, cfg.Tolerances())
}

func TestSchemaRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  - type: bogus\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.Schema()
	require.Error(t, err)
}
