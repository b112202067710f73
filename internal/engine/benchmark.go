package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nicokoch/fastcopy"
)

// BenchCase describes one measurement: Files distinct sources of Size bytes
// each, copied one after another to the same destination path.
type BenchCase struct {
	Name  string
	Seed  string // content pattern, repeated to Size
	Size  int64
	Files int
	Cross bool // destination lives under BenchConfig.CrossDir
}

// DefaultBenchCases returns the standard cases. large sets the size of the
// largest single-file case.
func DefaultBenchCases(large int64) []BenchCase {
	return []BenchCase{
		{Name: "small_file", Seed: "Hello World!", Size: 12, Files: 1},
		{Name: "mb_10", Seed: "a", Size: 10 << 20, Files: 1},
		{Name: "mb_100", Seed: "a", Size: large, Files: 1},
		{Name: "many_small", Seed: "Hello World!", Size: 64, Files: 100},
		{Name: "many_small_cross", Seed: "Hello World!", Size: 64, Files: 100, Cross: true},
	}
}

// NamedCopier is a Copier with a display name.
type NamedCopier struct {
	Name   string
	Copier fastcopy.Copier
}

// DefaultCopiers returns fastcopy and the baselines it is compared against.
func DefaultCopiers() []NamedCopier {
	return []NamedCopier{
		{Name: "fastcopy", Copier: fastcopy.Default},
		{Name: "std", Copier: StdCopy},
		{Name: "read_write", Copier: ReadWriteCopy},
	}
}

// BenchConfig controls a harness run.
type BenchConfig struct {
	Dir        string // scratch space for sources and same-filesystem destinations
	CrossDir   string // scratch space on another filesystem; empty skips Cross cases
	Iterations int
	Cases      []BenchCase
	Copiers    []NamedCopier
}

// BenchResult holds the timing of one case for one copier.
type BenchResult struct {
	Case       string
	Copier     string
	Iterations int
	Bytes      int64 // bytes copied per iteration
	Elapsed    time.Duration
	Skipped    string // reason, when the case did not run
}

// PerOp returns the mean wall time of one iteration.
func (r BenchResult) PerOp() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Iterations)
}

// BytesPerSec returns the mean throughput.
func (r BenchResult) BytesPerSec() float64 {
	elapsed := r.Elapsed
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}
	return float64(r.Bytes) * float64(r.Iterations) / elapsed.Seconds()
}

// RunBenchmark times every case with every copier. Scratch directories are
// created under cfg.Dir (and cfg.CrossDir) and removed afterwards.
func RunBenchmark(ctx context.Context, cfg BenchConfig) ([]BenchResult, error) {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}
	if len(cfg.Copiers) == 0 {
		cfg.Copiers = DefaultCopiers()
	}
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}

	work, err := makeScratch(cfg.Dir)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	var crossWork string
	if cfg.CrossDir != "" {
		crossWork, err = makeScratch(cfg.CrossDir)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(crossWork)
	}

	var results []BenchResult
	for _, bc := range cfg.Cases {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		if bc.Cross && crossWork == "" {
			for _, nc := range cfg.Copiers {
				results = append(results, BenchResult{Case: bc.Name, Copier: nc.Name, Skipped: "no cross-filesystem dir"})
			}
			continue
		}

		caseDir := filepath.Join(work, bc.Name)
		sources, err := writeBenchSources(caseDir, bc)
		if err != nil {
			return results, fmt.Errorf("prepare %s: %w", bc.Name, err)
		}

		dstDir := caseDir
		if bc.Cross {
			dstDir = filepath.Join(crossWork, bc.Name)
			if err := os.MkdirAll(dstDir, 0755); err != nil {
				return results, err
			}
		}

		for _, nc := range cfg.Copiers {
			dst := filepath.Join(dstDir, "dst-"+nc.Name)
			r, err := benchCopier(ctx, nc, bc, sources, dst, cfg.Iterations)
			if err != nil {
				return results, fmt.Errorf("%s/%s: %w", bc.Name, nc.Name, err)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func makeScratch(parent string) (string, error) {
	dir := filepath.Join(parent, ".fastcopy-bench-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func benchCopier(ctx context.Context, nc NamedCopier, bc BenchCase, sources []string, dst string, iterations int) (BenchResult, error) {
	result := BenchResult{Case: bc.Name, Copier: nc.Name, Bytes: bc.Size * int64(len(sources))}

	for range iterations {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		start := time.Now()
		var copied int64
		for _, src := range sources {
			n, err := nc.Copier.Copy(src, dst)
			if err != nil {
				return result, err
			}
			copied += n
		}
		result.Elapsed += time.Since(start)
		result.Iterations++

		if copied != result.Bytes {
			return result, fmt.Errorf("copied %d bytes, want %d", copied, result.Bytes)
		}
	}
	return result, nil
}

// writeBenchSources creates bc.Files files of bc.Size bytes in dir. When a
// case has several files each one starts with its index so no two are alike.
func writeBenchSources(dir string, bc BenchCase) ([]string, error) {
	if bc.Files <= 0 {
		return nil, errors.New("case has no files")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	seed := bc.Seed
	if seed == "" {
		seed = "a"
	}
	pattern := bytes.Repeat([]byte(seed), int(bc.Size)/len(seed)+1)[:bc.Size]

	sources := make([]string, bc.Files)
	for i := range bc.Files {
		data := pattern
		if bc.Files > 1 {
			data = append([]byte(nil), pattern...)
			copy(data, strconv.Itoa(i)+":")
		}
		sources[i] = filepath.Join(dir, fmt.Sprintf("src-%03d", i))
		if err := os.WriteFile(sources[i], data, 0644); err != nil {
			return nil, err
		}
	}
	return sources, nil
}
