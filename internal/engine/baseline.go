package engine

import (
	"io"
	"os"

	"github.com/nicokoch/fastcopy"
	"github.com/nicokoch/fastcopy/internal/platform"
)

// StdCopy is the portable baseline: os.Create, io.Copy, then chmod to the
// source permission bits. io.Copy lets the os package pick its own kernel
// copy path, which makes this the Go equivalent of a standard library copy.
var StdCopy fastcopy.Copier = fastcopy.CopierFunc(func(from, to string) (int64, error) {
	return copyWith(from, to, io.Copy)
})

// ReadWriteCopy always uses the generic read/write loop, i.e. what Copy
// does after it has fallen back.
var ReadWriteCopy fastcopy.Copier = fastcopy.CopierFunc(func(from, to string) (int64, error) {
	return copyWith(from, to, func(dst io.Writer, src io.Reader) (int64, error) {
		return platform.CopyReadWrite(dst, src)
	})
})

func copyWith(from, to string, copyFn func(io.Writer, io.Reader) (int64, error)) (int64, error) {
	src, err := os.Open(from)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}

	dst, err := os.Create(to)
	if err != nil {
		return 0, err
	}

	n, err := copyFn(dst, src)
	if err == nil {
		err = dst.Chmod(info.Mode().Perm())
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
