package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/compressor"
	"github.com/YimingQiao/blitzcrank/schema"
)

func writeFixture(t *testing.T, dir string) (csvPath, configPath string) {
	t.Helper()
	csvPath = filepath.Join(dir, "rows.csv")
	csvBody := "0,1.5,red\n1,2.25,blue\n0,3.75,red\n1,-4.5,green\n0,0,red\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csvBody), 0o644))

	configPath = filepath.Join(dir, "schema.yaml")
	configBody := "columns:\n  - type: categorical\n  - type: real\n  - type: string\nblock_size: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o644))
	return csvPath, configPath
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	csvPath, configPath := writeFixture(t, dir)
	compressedPath := filepath.Join(dir, "rows.blz")
	outPath := filepath.Join(dir, "rows.out.csv")

	require.NoError(t, runCompress([]string{csvPath, compressedPath, configPath}))
	require.NoError(t, runDecompress([]string{compressedPath, outPath, configPath}))

	cfg, err := loadSchema(configPath)
	require.NoError(t, err)
	s, err := cfg.Schema()
	require.NoError(t, err)

	got, err := compressor.ReadCSV(outPath, s)
	require.NoError(t, err)
	want, err := compressor.ReadCSV(csvPath, s)
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	for i := range want {
		for col := range s.Types {
			require.Equal(t, want[i].Values[col].String(), got[i].Values[col].String())
		}
	}
}

func TestBenchmarkReports(t *testing.T) {
	dir := t.TempDir()
	csvPath, configPath := writeFixture(t, dir)
	require.NoError(t, runBenchmark([]string{csvPath, configPath}))
}

func TestRandomAccessSamples(t *testing.T) {
	dir := t.TempDir()
	csvPath, configPath := writeFixture(t, dir)
	require.NoError(t, runRandomAccess([]string{csvPath, configPath}))
}

func TestCompressRejectsMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, configPath := writeFixture(t, dir)
	err := runCompress([]string{filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out.blz"), configPath})
	require.Error(t, err)
}

func TestEstimateCSVBytes(t *testing.T) {
	s := schema.NewSchema(schema.Int, schema.String)
	rows := []schema.Tuple{
		{Values: []schema.Value{schema.IntValue(12), schema.StringValue("ab")}},
	}
	require.Equal(t, len("12")+1+len("ab")+1, estimateCSVBytes(s, rows))
}
