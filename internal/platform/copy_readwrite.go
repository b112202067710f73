package platform

import (
	"errors"
	"io"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies from src to dst with a pooled buffer until src is
// exhausted and returns the number of bytes written.
//
// Read and Write are called directly so (*os.File).ReadFrom never gets a
// chance to pick a kernel copy path of its own.
func copyReadWrite(dst io.Writer, src io.Reader) (int64, error) {
	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	var totalWritten int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			if w > 0 {
				totalWritten += int64(w)
			}
			if werr != nil {
				return totalWritten, werr
			}
			if w != n {
				return totalWritten, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return totalWritten, nil
			}
			return totalWritten, rerr
		}
		if n == 0 {
			return totalWritten, nil
		}
	}
}

// CopyReadWrite copies from src to dst with the generic buffered loop. It is
// exported so callers can pin the portable path, e.g. for measurements.
func CopyReadWrite(dst io.Writer, src io.Reader) (int64, error) {
	return copyReadWrite(dst, src)
}
