// Command blitzcrank is the CLI front end over the compressor package: it
// reads a schema config, ingests rows from CSV, and drives the relational
// compress/decompress/benchmark/random-access paths. This mirrors the
// teacher's flat root main.go (no framework, direct calls into library
// code) but dispatches on mode flags instead of hard-coding one dataset.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/YimingQiao/blitzcrank/compressor"
	"github.com/YimingQiao/blitzcrank/config"
	"github.com/YimingQiao/blitzcrank/schema"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  blitzcrank -c input output config   compress")
	fmt.Fprintln(os.Stderr, "  blitzcrank -d input output config   decompress")
	fmt.Fprintln(os.Stderr, "  blitzcrank -b input config          benchmark")
	fmt.Fprintln(os.Stderr, "  blitzcrank -ra input config         random-access test")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "-c":
		err = runCompress(os.Args[2:])
	case "-d":
		err = runDecompress(os.Args[2:])
	case "-b":
		err = runBenchmark(os.Args[2:])
	case "-ra":
		err = runRandomAccess(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "blitzcrank:", err)
		os.Exit(2)
	}
}

func loadSchema(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCompress(args []string) error {
	if len(args) != 3 {
		usage()
		os.Exit(1)
	}
	input, output, configPath := args[0], args[1], args[2]

	cfg, err := loadSchema(configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Schema()
	if err != nil {
		return err
	}
	rows, err := compressor.ReadCSV(input, s)
	if err != nil {
		return err
	}
	data, err := compressor.CompressRelational(s, rows, cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Printf("%d rows, %d bytes\n", len(rows), len(data))
	return nil
}

func runDecompress(args []string) error {
	if len(args) != 3 {
		usage()
		os.Exit(1)
	}
	input, output, configPath := args[0], args[1], args[2]

	cfg, err := loadSchema(configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Schema()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}
	rows, err := compressor.DecompressRelational(s, data, cfg)
	if err != nil {
		return err
	}
	if err := compressor.WriteCSV(output, s, rows); err != nil {
		return err
	}
	fmt.Printf("%d rows\n", len(rows))
	return nil
}

func runBenchmark(args []string) error {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	input, configPath := args[0], args[1]

	cfg, err := loadSchema(configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Schema()
	if err != nil {
		return err
	}
	rows, err := compressor.ReadCSV(input, s)
	if err != nil {
		return err
	}

	start := time.Now()
	data, err := compressor.CompressRelational(s, rows, cfg)
	compressTime := time.Since(start)
	if err != nil {
		return err
	}

	start = time.Now()
	decoded, err := compressor.DecompressRelational(s, data, cfg)
	decompressTime := time.Since(start)
	if err != nil {
		return err
	}
	if len(decoded) != len(rows) {
		return fmt.Errorf("benchmark: round trip produced %d rows, want %d", len(decoded), len(rows))
	}

	originalBytes := estimateCSVBytes(s, rows)
	ratio := float64(originalBytes) / float64(len(data))
	fmt.Printf("rows: %d\n", len(rows))
	fmt.Printf("original (csv-estimate): %d bytes\n", originalBytes)
	fmt.Printf("compressed: %d bytes\n", len(data))
	fmt.Printf("ratio: %.3f\n", ratio)
	fmt.Printf("compress time: %v\n", compressTime)
	fmt.Printf("decompress time: %v\n", decompressTime)
	return nil
}

// runRandomAccess compresses input, then spot-checks a handful of
// pseudo-randomly chosen rows against a full decompress. It does not yet
// seek a single tuple without decoding its whole block; see DESIGN.md.
func runRandomAccess(args []string) error {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	input, configPath := args[0], args[1]

	cfg, err := loadSchema(configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Schema()
	if err != nil {
		return err
	}
	rows, err := compressor.ReadCSV(input, s)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("random-access test: %s has no rows", input)
	}

	data, err := compressor.CompressRelational(s, rows, cfg)
	if err != nil {
		return err
	}
	decoded, err := compressor.DecompressRelational(s, data, cfg)
	if err != nil {
		return err
	}
	if len(decoded) != len(rows) {
		return fmt.Errorf("random-access test: round trip produced %d rows, want %d", len(decoded), len(rows))
	}

	rng := rand.New(rand.NewSource(1))
	trials := 20
	if trials > len(rows) {
		trials = len(rows)
	}
	for i := 0; i < trials; i++ {
		idx := rng.Intn(len(rows))
		if err := s.Validate(decoded[idx]); err != nil {
			return fmt.Errorf("random-access test: row %d failed validation: %w", idx, err)
		}
		for col := range s.Types {
			if rows[idx].Values[col].String() != decoded[idx].Values[col].String() {
				return fmt.Errorf("random-access test: row %d col %d mismatch: got %v want %v",
					idx, col, decoded[idx].Values[col], rows[idx].Values[col])
			}
		}
	}
	fmt.Printf("random-access test: %d/%d sampled rows matched\n", trials, len(rows))
	return nil
}

// estimateCSVBytes approximates the CSV-encoded size of rows without
// writing them out, for the benchmark's compression-ratio report.
func estimateCSVBytes(s schema.Schema, rows []schema.Tuple) int {
	total := 0
	for _, t := range rows {
		for col := range s.Types {
			total += len(t.Values[col].String()) + 1 // +1 for the separator/newline
		}
	}
	return total
}
