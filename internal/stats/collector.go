package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks batch copy statistics using lock-free atomic counters.
type Collector struct {
	filesCopied       atomic.Int64
	filesFailed       atomic.Int64
	bytesCopied       atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	filesTotal        atomic.Int64
	bytesTotal        atomic.Int64
	startTime         time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied       int64
	FilesFailed       int64
	BytesCopied       int64
	FilesVerified     int64
	FilesVerifyFailed int64
	FilesTotal        int64
	BytesTotal        int64
	Elapsed           time.Duration
}

// SetTotals records the planned work (called once before copying starts).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesCopied(n int64)       { c.filesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)       { c.filesFailed.Add(n) }
func (c *Collector) AddBytesCopied(n int64)       { c.bytesCopied.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:       c.filesCopied.Load(),
		FilesFailed:       c.filesFailed.Load(),
		BytesCopied:       c.bytesCopied.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		FilesTotal:        c.filesTotal.Load(),
		BytesTotal:        c.bytesTotal.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d/%d failed=%d bytes=%d/%d verified=%d mismatched=%d",
		s.FilesCopied, s.FilesTotal, s.FilesFailed,
		s.BytesCopied, s.BytesTotal,
		s.FilesVerified, s.FilesVerifyFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
