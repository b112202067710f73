package ui

import (
	"io"

	"github.com/nicokoch/fastcopy/internal/stats"
)

// Presenter consumes events and displays results.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer io.Writer
	Stats  *stats.Collector
	// Theme colors lines written to Writer; SummaryTheme colors Summary,
	// which the caller may print to a different stream.
	Theme        Theme
	SummaryTheme Theme
	Quiet        bool
	Verbose      bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory selects the implementation
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	return &plainPresenter{
		w:            cfg.Writer,
		stats:        cfg.Stats,
		theme:        cfg.Theme,
		summaryTheme: cfg.SummaryTheme,
		verbose:      cfg.Verbose,
	}
}
