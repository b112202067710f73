//go:build linux

package platform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxCopyFileRangeChunk caps a single copy_file_range request. The kernel
// clamps larger requests anyway; smaller ones keep each call bounded.
var maxCopyFileRangeChunk int64 = 1 << 30

// copyFileRange is the syscall entry point. Tests swap it for a fake.
var copyFileRange = unix.CopyFileRange

// copyFileRangeUnsupported latches once copy_file_range reports ENOSYS
// (kernels before 4.5). It is never cleared.
var copyFileRangeUnsupported atomic.Bool

// CopyFile copies from to to with copy_file_range, falling through to
// read/write on unsupported/cross-device errors.
func CopyFile(from, to string) (CopyResult, error) {
	return copyPath(from, to, copyContent)
}

func copyContent(dst, src *os.File, size int64) (CopyResult, error) {
	preallocate(dst, size)

	written, err := copyFileRangeLoop(dst, src, size)
	if err == nil {
		return CopyResult{BytesWritten: written, Method: CopyFileRange}, nil
	}
	if !errors.Is(err, errFallback) {
		return CopyResult{}, err
	}

	// copy_file_range moved both file offsets past written, so read/write
	// picks up exactly where the fast path stopped. It runs to EOF rather
	// than to size: size is a snapshot, and the count returned is what was
	// actually written even if the source changed since.
	n, err := copyReadWrite(dst, src)
	if err != nil {
		return CopyResult{}, err
	}
	return CopyResult{BytesWritten: written + n, Method: ReadWrite}, nil
}

// errFallback signals that copy_file_range cannot serve this call and the
// remaining bytes must go through read/write.
var errFallback = errors.New("copy_file_range unavailable")

// copyFileRangeLoop transfers size bytes with copy_file_range using the
// current file offsets. It returns the bytes transferred so far together
// with errFallback when the caller should finish with read/write.
func copyFileRangeLoop(dst, src *os.File, size int64) (int64, error) {
	var written int64
	if size == 0 {
		return 0, nil
	}
	if copyFileRangeUnsupported.Load() {
		return 0, errFallback
	}

	srcFd := int(src.Fd())
	dstFd := int(dst.Fd())
	zeros := 0

	for written < size {
		chunk := min(size-written, maxCopyFileRangeChunk)
		n, err := copyFileRange(srcFd, nil, dstFd, nil, int(chunk), 0)
		if err != nil {
			return written, classifyCopyFileRangeErr(err, written)
		}
		if n > 0 {
			written += int64(n)
			zeros = 0
			continue
		}

		// A zero return is a short transfer. Twice in a row means the kernel
		// will not make progress: either the source is not served by
		// copy_file_range at all, or it shrank while we were copying.
		zeros++
		if zeros < 2 {
			continue
		}
		if written == 0 {
			return 0, errFallback
		}
		return written, fmt.Errorf("copy_file_range: %d of %d bytes: %w", written, size, io.ErrUnexpectedEOF)
	}
	return written, nil
}

// classifyCopyFileRangeErr maps a copy_file_range failure to errFallback or
// to the error the caller must see.
func classifyCopyFileRangeErr(err error, written int64) error {
	switch {
	case errors.Is(err, unix.ENOSYS):
		if copyFileRangeUnsupported.CompareAndSwap(false, true) {
			slog.Debug("copy_file_range not implemented by this kernel, using read/write from now on")
		}
		return errFallback
	case errors.Is(err, unix.EXDEV):
		return errFallback
	case written == 0 && (errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.EINVAL)):
		// The filesystem does not implement the operation for these files.
		return errFallback
	}
	return os.NewSyscallError("copy_file_range", err)
}
