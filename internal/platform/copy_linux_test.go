//go:build linux

package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type copyFileRangeFunc = func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error)

// stubCopyFileRange replaces the syscall for the duration of the test and
// clears the process-wide ENOSYS latch before and after.
func stubCopyFileRange(t *testing.T, fn copyFileRangeFunc) {
	t.Helper()

	orig := copyFileRange
	copyFileRangeUnsupported.Store(false)
	copyFileRange = fn
	t.Cleanup(func() {
		copyFileRange = orig
		copyFileRangeUnsupported.Store(false)
	})
}

// emulateCopyFileRange moves up to n bytes between the current offsets of
// rfd and wfd in user space, advancing both like the real syscall.
func emulateCopyFileRange(rfd int, _ *int64, wfd int, _ *int64, n int, _ int) (int, error) {
	buf := make([]byte, n)
	r, err := unix.Read(rfd, buf)
	if err != nil {
		return 0, err
	}
	return unix.Write(wfd, buf[:r])
}

func writeSource(t *testing.T, dir string, data []byte) string {
	t.Helper()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, data, 0o640))
	return src
}

func requireSameFile(t *testing.T, want []byte, path string) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestCopyFileRangeIsAttempted(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
		calls.Add(1)
		return unix.CopyFileRange(rfd, roff, wfd, woff, n, flags)
	})

	dir := t.TempDir()
	data := bytes.Repeat([]byte("fastcopy"), 4096)
	src := writeSource(t, dir, data)
	dst := filepath.Join(dir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), result.BytesWritten)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	requireSameFile(t, data, dst)
}

func TestCopyFileRangeChunks(t *testing.T) {
	origChunk := maxCopyFileRangeChunk
	maxCopyFileRangeChunk = 4096
	t.Cleanup(func() { maxCopyFileRangeChunk = origChunk })

	var lens []int
	stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
		lens = append(lens, n)
		return emulateCopyFileRange(rfd, roff, wfd, woff, n, flags)
	})

	dir := t.TempDir()
	data := bytes.Repeat([]byte{'x'}, 10000)
	src := writeSource(t, dir, data)
	dst := filepath.Join(dir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, CopyFileRange, result.Method)
	assert.Equal(t, int64(10000), result.BytesWritten)
	assert.Equal(t, []int{4096, 4096, 1808}, lens)
	requireSameFile(t, data, dst)
}

func TestCopyFileRangeShortTransfers(t *testing.T) {
	var calls int
	stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
		calls++
		// Alternate a short transfer with an empty one.
		if calls%2 == 0 {
			return 0, nil
		}
		return emulateCopyFileRange(rfd, roff, wfd, woff, min(n, 7), flags)
	})

	dir := t.TempDir()
	data := []byte("short transfers add up")
	src := writeSource(t, dir, data)
	dst := filepath.Join(dir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, CopyFileRange, result.Method)
	assert.Equal(t, int64(len(data)), result.BytesWritten)
	requireSameFile(t, data, dst)
}

func TestCopyFileRangeENOSYSLatches(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls.Add(1)
		return 0, unix.ENOSYS
	})

	dir := t.TempDir()
	data := []byte("Hello World!")
	src := writeSource(t, dir, data)

	for i := range 5 {
		dst := filepath.Join(dir, fmt.Sprintf("dst-%d", i))
		result, err := CopyFile(src, dst)
		require.NoError(t, err)
		assert.Equal(t, ReadWrite, result.Method)
		assert.Equal(t, int64(12), result.BytesWritten)
		requireSameFile(t, data, dst)
	}

	assert.Equal(t, int32(1), calls.Load(), "copy_file_range must not be retried after ENOSYS")
	assert.True(t, copyFileRangeUnsupported.Load())
}

func TestCopyFileRangeCrossDeviceIsPerCall(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls.Add(1)
		return 0, unix.EXDEV
	})

	dir := t.TempDir()
	data := bytes.Repeat([]byte("cross "), 1000)
	src := writeSource(t, dir, data)

	for i := range 3 {
		dst := filepath.Join(dir, fmt.Sprintf("dst-%d", i))
		result, err := CopyFile(src, dst)
		require.NoError(t, err)
		assert.Equal(t, ReadWrite, result.Method)
		requireSameFile(t, data, dst)
	}

	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, copyFileRangeUnsupported.Load())
}

func TestCopyFileRangeResumesAfterPartialProgress(t *testing.T) {
	for _, errno := range []unix.Errno{unix.EXDEV, unix.ENOSYS} {
		t.Run(errno.Error(), func(t *testing.T) {
			var calls int
			stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
				calls++
				if calls == 1 {
					return emulateCopyFileRange(rfd, roff, wfd, woff, min(n, 5), flags)
				}
				return 0, errno
			})

			dir := t.TempDir()
			data := []byte("0123456789abcdefghij")
			src := writeSource(t, dir, data)
			dst := filepath.Join(dir, "dst")

			result, err := CopyFile(src, dst)
			require.NoError(t, err)
			assert.Equal(t, ReadWrite, result.Method)
			assert.Equal(t, int64(len(data)), result.BytesWritten)
			requireSameFile(t, data, dst)
		})
	}
}

func TestCopyFileRangeUnsupportedByFilesystem(t *testing.T) {
	for _, errno := range []unix.Errno{unix.EOPNOTSUPP, unix.EINVAL} {
		t.Run(errno.Error(), func(t *testing.T) {
			stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
				return 0, errno
			})

			dir := t.TempDir()
			data := []byte("filesystem says no")
			src := writeSource(t, dir, data)
			dst := filepath.Join(dir, "dst")

			result, err := CopyFile(src, dst)
			require.NoError(t, err)
			assert.Equal(t, ReadWrite, result.Method)
			requireSameFile(t, data, dst)
			assert.False(t, copyFileRangeUnsupported.Load())
		})
	}
}

func TestCopyFileRangeUnsupportedAfterProgressIsFatal(t *testing.T) {
	var calls int
	stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
		calls++
		if calls == 1 {
			return emulateCopyFileRange(rfd, roff, wfd, woff, min(n, 3), flags)
		}
		return 0, unix.EINVAL
	})

	dir := t.TempDir()
	src := writeSource(t, dir, []byte("partial then einval"))

	_, err := CopyFile(src, filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EINVAL)
}

func TestCopyFileRangeOtherErrorsAreFatal(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls.Add(1)
		return 0, unix.EIO
	})

	dir := t.TempDir()
	src := writeSource(t, dir, []byte("io error"))

	_, err := CopyFile(src, filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EIO)

	var sysErr *os.SyscallError
	require.ErrorAs(t, err, &sysErr)
	assert.Equal(t, "copy_file_range", sysErr.Syscall)
	assert.Equal(t, int32(1), calls.Load(), "no retry after a fatal error")
	assert.False(t, copyFileRangeUnsupported.Load())
}

func TestCopyFileRangeZeroBeforeProgressFallsBack(t *testing.T) {
	var calls int
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls++
		return 0, nil
	})

	dir := t.TempDir()
	data := []byte("kernel returned nothing")
	src := writeSource(t, dir, data)
	dst := filepath.Join(dir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, ReadWrite, result.Method)
	assert.Equal(t, 2, calls)
	requireSameFile(t, data, dst)
}

func TestCopyFileRangeSourceTruncatedBeforeTransfer(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, []byte("gone before the first transfer"))
	dst := filepath.Join(dir, "dst")

	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		if err := os.Truncate(src, 0); err != nil {
			return 0, err
		}
		return 0, nil
	})

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, ReadWrite, result.Method)
	assert.Equal(t, int64(0), result.BytesWritten, "count reflects bytes written, not the stat size")
	requireSameFile(t, []byte{}, dst)
}

func TestCopyFileRangeZeroAfterProgressFails(t *testing.T) {
	var calls int
	stubCopyFileRange(t, func(rfd int, roff *int64, wfd int, woff *int64, n int, flags int) (int, error) {
		calls++
		if calls == 1 {
			return emulateCopyFileRange(rfd, roff, wfd, woff, min(n, 4), flags)
		}
		return 0, nil
	})

	dir := t.TempDir()
	src := writeSource(t, dir, []byte("shrinking source"))

	_, err := CopyFile(src, filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 3, calls)
}

func TestCopyFileRangeSkippedForEmptyFile(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls.Add(1)
		return 0, unix.EIO
	})

	dir := t.TempDir()
	src := writeSource(t, dir, nil)
	dst := filepath.Join(dir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.BytesWritten)
	assert.Equal(t, int32(0), calls.Load())
	requireSameFile(t, []byte{}, dst)
}

func TestCopyFileRangeConcurrentENOSYS(t *testing.T) {
	var calls atomic.Int32
	stubCopyFileRange(t, func(int, *int64, int, *int64, int, int) (int, error) {
		calls.Add(1)
		return 0, unix.ENOSYS
	})

	dir := t.TempDir()
	data := bytes.Repeat([]byte("concurrent"), 512)
	src := writeSource(t, dir, data)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = CopyFile(src, filepath.Join(dir, fmt.Sprintf("dst-%d", i)))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
		requireSameFile(t, data, filepath.Join(dir, fmt.Sprintf("dst-%d", i)))
	}
	assert.True(t, copyFileRangeUnsupported.Load())
	assert.LessOrEqual(t, calls.Load(), int32(workers))

	// Once latched, nothing reaches the syscall any more.
	before := calls.Load()
	_, err := CopyFile(src, filepath.Join(dir, "after"))
	require.NoError(t, err)
	assert.Equal(t, before, calls.Load())
}

// TestCopyFileCrossFilesystem needs a directory on a different filesystem
// than the test's temp dir, e.g. FASTCOPY_CROSS_DIR=/dev/shm.
func TestCopyFileCrossFilesystem(t *testing.T) {
	crossDir := os.Getenv("FASTCOPY_CROSS_DIR")
	if crossDir == "" {
		t.Skip("FASTCOPY_CROSS_DIR not set")
	}

	dir := t.TempDir()
	data := bytes.Repeat([]byte{'a'}, 2*1024*1024)
	src := writeSource(t, dir, data)

	dstDir, err := os.MkdirTemp(crossDir, "fastcopy-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dstDir) })
	dst := filepath.Join(dstDir, "dst")

	result, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), result.BytesWritten)
	requireSameFile(t, data, dst)
}
