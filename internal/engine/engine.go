package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nicokoch/fastcopy"
	"github.com/nicokoch/fastcopy/internal/event"
	"github.com/nicokoch/fastcopy/internal/stats"
)

// Config describes a batch of file copies.
type Config struct {
	Sources []string
	Dst     string
	Workers int
	Verify  bool
	Hash    HashAlgo
	Copier  fastcopy.Copier // nil means fastcopy.Default
	Events  chan<- event.Event
	Stats   *stats.Collector
}

// Result is the outcome of a batch.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

// Task is one source/destination pair.
type Task struct {
	Src  string
	Dst  string
	Size int64
}

// Plan maps sources to destination paths. A single source copies to dst
// unless dst is an existing directory; several sources require dst to be
// an existing directory and land under their base names.
func Plan(sources []string, dst string) ([]Task, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources")
	}

	dstIsDir := false
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dstIsDir = true
	}
	if len(sources) > 1 && !dstIsDir {
		return nil, fmt.Errorf("destination %s is not a directory", dst)
	}

	tasks := make([]Task, 0, len(sources))
	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		target := dst
		if dstIsDir {
			target = filepath.Join(dst, filepath.Base(src))
		}
		if prev, ok := seen[target]; ok {
			return nil, fmt.Errorf("%s and %s both copy to %s", prev, src, target)
		}
		seen[target] = src

		task := Task{Src: src, Dst: target}
		// Size is informational; Copy does its own validation.
		if info, err := os.Stat(src); err == nil {
			task.Size = info.Size()
			// Copy truncates the destination first, which would empty the source.
			if dstInfo, err := os.Stat(target); err == nil && os.SameFile(info, dstInfo) {
				return nil, fmt.Errorf("%s and %s are the same file", src, target)
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Run copies every planned task, blocking until complete. Individual
// failures do not stop the batch; cancellation is checked between files.
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	tasks, err := Plan(cfg.Sources, cfg.Dst)
	if err != nil {
		return Result{Stats: collector.Snapshot(), Err: err}
	}

	var totalBytes int64
	for _, task := range tasks {
		totalBytes += task.Size
	}
	collector.SetTotals(int64(len(tasks)), totalBytes)

	b := &batch{cfg: cfg, stats: collector, copier: cfg.Copier}
	if b.copier == nil {
		b.copier = fastcopy.Default
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			b.copyOne(task)
			return nil
		})
	}
	_ = g.Wait() // workers record failures in b.errs

	copyErr := b.err()
	if copyErr == nil && ctx.Err() != nil {
		copyErr = ctx.Err()
	}

	return Result{
		Stats: collector.Snapshot(),
		Err:   copyErr,
	}
}

type batch struct {
	cfg    Config
	stats  *stats.Collector
	copier fastcopy.Copier

	mu   sync.Mutex
	errs []error
}

func (b *batch) copyOne(task Task) {
	emitEvent(b.cfg.Events, event.Event{Type: event.FileStarted, Src: task.Src, Dst: task.Dst})

	start := time.Now()
	n, err := b.copier.Copy(task.Src, task.Dst)
	elapsed := time.Since(start)
	if err != nil {
		b.fail(err)
		b.stats.AddFilesFailed(1)
		emitEvent(b.cfg.Events, event.Event{
			Type:  event.FileFailed,
			Src:   task.Src,
			Dst:   task.Dst,
			Error: err,
		})
		return
	}

	b.stats.AddFilesCopied(1)
	b.stats.AddBytesCopied(n)
	slog.Debug("copied", "src", task.Src, "dst", task.Dst, "bytes", n, "elapsed", elapsed)
	emitEvent(b.cfg.Events, event.Event{
		Type:    event.FileCompleted,
		Src:     task.Src,
		Dst:     task.Dst,
		Size:    n,
		Elapsed: elapsed,
	})

	if !b.cfg.Verify {
		return
	}
	if err := VerifyFile(task.Src, task.Dst, b.cfg.Hash); err != nil {
		b.fail(err)
		b.stats.AddFilesVerifyFailed(1)
		emitEvent(b.cfg.Events, event.Event{
			Type:  event.VerifyFailed,
			Src:   task.Src,
			Dst:   task.Dst,
			Error: err,
		})
		return
	}
	b.stats.AddFilesVerified(1)
	emitEvent(b.cfg.Events, event.Event{Type: event.VerifyOK, Src: task.Src, Dst: task.Dst})
}

func (b *batch) fail(err error) {
	b.mu.Lock()
	b.errs = append(b.errs, err)
	b.mu.Unlock()
}

// err folds the recorded failures into one error.
func (b *batch) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch len(b.errs) {
	case 0:
		return nil
	case 1:
		return b.errs[0]
	}
	return fmt.Errorf("%w (and %d more errors)", b.errs[0], len(b.errs)-1)
}

// emitEvent delivers e unless the channel is nil. It blocks when the
// consumer is behind so that no per-file event is lost.
func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	ch <- e
}
