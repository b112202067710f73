package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/nicokoch/fastcopy/internal/stats"
)

// plainPresenter outputs one line per finished file.
type plainPresenter struct {
	w            io.Writer
	stats        *stats.Collector
	theme        Theme
	summaryTheme Theme
	verbose      bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	return nil
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case FileStarted:
		// nothing to show until the copy finishes
	case FileCompleted:
		fmt.Fprintf(p.w, "%s -> %s  %s  %s\n",
			ev.Src, ev.Dst, FormatBytes(ev.Size), p.theme.Muted(FormatRate(rate(ev.Size, ev.Elapsed))))
	case FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s -> %s  %s\n", ev.Src, ev.Dst, p.theme.Fail(errMsg))
	case VerifyFailed:
		fmt.Fprintf(p.w, "%s %s\n", p.theme.Fail("MISMATCH:"), ev.Dst)
	case VerifyOK:
		if p.verbose {
			fmt.Fprintf(p.w, "verified %s\n", ev.Dst)
		}
	}
}

func (p *plainPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	return completionSummary(p.stats.Snapshot(), p.summaryTheme)
}

func rate(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}
	return float64(n) / elapsed.Seconds()
}
