package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nicokoch/fastcopy/internal/config"
	"github.com/nicokoch/fastcopy/internal/engine"
	"github.com/nicokoch/fastcopy/internal/event"
	"github.com/nicokoch/fastcopy/internal/stats"
	"github.com/nicokoch/fastcopy/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

type copyFlags struct {
	workers     int
	verbose     bool
	quiet       bool
	verify      bool
	hash        string
	logFile     string
	showVersion bool
}

func run(args []string) int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f copyFlags

	rootCmd := &cobra.Command{
		Use:   "fastcopy [flags] <source>... <destination>",
		Short: "Copy files using the fastest mechanism the kernel offers",
		Args: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				return nil
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Fprintf(stdout, "fastcopy %s\n", version)
				return nil
			}
			return runCopy(cmd, f, args, stdout, stderr)
		},
	}

	rootCmd.Flags().BoolVar(&f.showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		IntVarP(&f.workers, "workers", "n", 0, "number of files copied in parallel (default: min(NumCPU, 8))")
	rootCmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVar(&f.verify, "verify", false, "verify checksums after copy")
	rootCmd.Flags().StringVar(&f.hash, "hash", string(engine.HashBLAKE3), "checksum used by --verify (blake3 or xxhash)")
	rootCmd.Flags().StringVar(&f.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(newBenchCmd(stdout))
	rootCmd.AddCommand(newDocsCmd())

	return rootCmd
}

func runCopy(cmd *cobra.Command, f copyFlags, args []string, stdout, stderr io.Writer) error {
	sources := args[:len(args)-1]
	dst := args[len(args)-1]

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, cfg.Defaults, &f)

	algo, err := engine.ParseHashAlgo(f.hash)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(stderr, f.verbose, f.quiet, f.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	if f.workers <= 0 {
		f.workers = min(runtime.NumCPU(), 8)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// With --log, events are also written as structured records.
	presenterEvents := (<-chan event.Event)(events)
	if f.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:       stdout,
		Stats:        collector,
		Theme:        themeFor(stdout, cfg.Theme),
		SummaryTheme: themeFor(stderr, cfg.Theme),
		Quiet:        f.quiet,
		Verbose:      f.verbose,
	})

	slog.Debug("starting copy", "sources", sources, "dst", dst, "workers", f.workers, "verify", f.verify)

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engine.Config{
		Sources: sources,
		Dst:     dst,
		Workers: f.workers,
		Verify:  f.verify,
		Hash:    algo,
		Events:  events,
		Stats:   collector,
	})
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(stderr, "presenter: %v\n", presenterErr)
	}

	if !f.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(stderr, summary)
		}
	}

	if result.Err != nil {
		slog.Error("copy failed", "error", result.Err)
		return &exitError{code: exitCode(result.Stats)}
	}
	return nil
}

// setupLogging installs the default logger. The returned func closes the
// log file, if any.
func setupLogging(stderr io.Writer, verbose, quiet bool, logFile string) (func(), error) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel})

	closeFn := func() {}
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeFn = func() { _ = lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

// themeFor colors output only when w is a terminal.
func themeFor(w io.Writer, tc config.ThemeConfig) ui.Theme {
	if file, ok := w.(*os.File); ok && ui.IsTTY(file.Fd()) {
		return ui.NewTheme(tc)
	}
	return ui.Theme{}
}

// teeEvents logs every event before forwarding it.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("src", ev.Src),
				slog.String("dst", ev.Dst),
				slog.Int64("size", ev.Size),
			}
			if ev.Elapsed > 0 {
				attrs = append(attrs, slog.Duration("elapsed", ev.Elapsed))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "fastcopy.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// exitCode is 1 when some files made it, 2 when none did.
func exitCode(snap stats.Snapshot) int {
	if snap.FilesCopied > 0 {
		return 1
	}
	return 2
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, f *copyFlags) {
	if !cmd.Flags().Changed("verify") && defaults.Verify != nil {
		f.verify = *defaults.Verify
	}
	if !cmd.Flags().Changed("workers") && defaults.Workers != nil {
		f.workers = *defaults.Workers
	}
	if !cmd.Flags().Changed("hash") && defaults.Hash != nil {
		f.hash = *defaults.Hash
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
