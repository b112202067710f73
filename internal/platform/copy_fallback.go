//go:build !linux && !darwin

package platform

// CopyFile falls back to read/write on unsupported platforms.
func CopyFile(from, to string) (CopyResult, error) {
	return copyPath(from, to, copyAll)
}
