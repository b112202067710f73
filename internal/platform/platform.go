package platform

import (
	"errors"
	"io/fs"
)

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Clonefile                // macOS clonefile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Clonefile:
		return "clonefile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
//
// Method is the strategy that finished the copy. A copy that started on the
// fast path and resumed with read/write reports ReadWrite.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// ErrInvalidInput is returned when the source is missing or is not a regular file.
var ErrInvalidInput = errors.New("the source path is not an existing regular file")

// permBits are the mode bits carried from source to destination.
const permBits = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky
