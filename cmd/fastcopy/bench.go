package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicokoch/fastcopy/internal/config"
	"github.com/nicokoch/fastcopy/internal/engine"
	"github.com/nicokoch/fastcopy/internal/stats"
	"github.com/nicokoch/fastcopy/internal/ui"
)

// sizeFlag is a pflag.Value accepting human sizes such as 512M or 1G.
type sizeFlag struct {
	n int64
}

var _ pflag.Value = (*sizeFlag)(nil)

func (s *sizeFlag) String() string { return stats.FormatBytes(s.n) }
func (*sizeFlag) Type() string     { return "size" }

func (s *sizeFlag) Set(val string) error {
	n, err := stats.ParseSize(val)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("size must be positive: %q", val)
	}
	s.n = n
	return nil
}

type benchFlags struct {
	iterations int
	dir        string
	crossDir   string
	large      sizeFlag
	cases      []string
}

func newBenchCmd(stdout io.Writer) *cobra.Command {
	f := benchFlags{
		iterations: 5,
		large:      sizeFlag{n: 100 << 20},
	}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare fastcopy against portable copy loops",
		Long: `Times each case with fastcopy and with the io.Copy and read/write
baselines. Cases: ` + strings.Join(caseNames(engine.DefaultBenchCases(0)), ", ") + `.
The many_small_cross case needs --cross-dir on a different filesystem.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
			}
			if err := applyBenchDefaults(cmd, cfg.Bench, &f); err != nil {
				return err
			}

			cases, err := selectCases(engine.DefaultBenchCases(f.large.n), f.cases)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results, err := engine.RunBenchmark(ctx, engine.BenchConfig{
				Dir:        f.dir,
				CrossDir:   f.crossDir,
				Iterations: f.iterations,
				Cases:      cases,
			})
			if err != nil {
				return fmt.Errorf("benchmark: %w", err)
			}
			return ui.RenderBenchTable(stdout, results, "std")
		},
	}

	cmd.Flags().IntVar(&f.iterations, "iterations", f.iterations, "timed runs per case and copier")
	cmd.Flags().StringVar(&f.dir, "dir", "", "scratch directory (default: system temp dir)")
	cmd.Flags().StringVar(&f.crossDir, "cross-dir", "", "scratch directory on another filesystem")
	cmd.Flags().Var(&f.large, "large", "size of the mb_100 case (e.g. 1G)")
	cmd.Flags().StringArrayVar(&f.cases, "case", nil, "run only this case (repeatable)")

	return cmd
}

// applyBenchDefaults applies [bench] config values for flags not set on the CLI.
func applyBenchDefaults(cmd *cobra.Command, bench config.BenchConfig, f *benchFlags) error {
	if !cmd.Flags().Changed("iterations") && bench.Iterations != nil {
		f.iterations = *bench.Iterations
	}
	if !cmd.Flags().Changed("dir") && bench.Dir != nil {
		f.dir = *bench.Dir
	}
	if !cmd.Flags().Changed("cross-dir") && bench.CrossDir != nil {
		f.crossDir = *bench.CrossDir
	}
	if !cmd.Flags().Changed("large") && bench.Large != nil {
		if err := f.large.Set(*bench.Large); err != nil {
			return fmt.Errorf("config bench.large: %w", err)
		}
	}
	return nil
}

// selectCases filters all by name, keeping the order of all.
func selectCases(all []engine.BenchCase, names []string) ([]engine.BenchCase, error) {
	if len(names) == 0 {
		return all, nil
	}
	known := caseNames(all)
	for _, n := range names {
		if !slices.Contains(known, n) {
			return nil, fmt.Errorf("unknown case %q (available: %s)", n, strings.Join(known, ", "))
		}
	}
	var out []engine.BenchCase
	for _, bc := range all {
		if slices.Contains(names, bc.Name) {
			out = append(out, bc)
		}
	}
	return out, nil
}

func caseNames(cases []engine.BenchCase) []string {
	names := make([]string, len(cases))
	for i, bc := range cases {
		names[i] = bc.Name
	}
	return names
}
