//go:build !linux

package platform

import "os"

// preallocate does nothing outside Linux; fallocate(2) is Linux-only.
func preallocate(_ *os.File, _ int64) {}
