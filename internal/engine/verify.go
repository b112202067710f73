package engine

import "fmt"

// VerifyError records a checksum mismatch between a source and its copy.
type VerifyError struct {
	Src     string
	Dst     string
	SrcHash string
	DstHash string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: checksum mismatch with %s (%s != %s)", e.Dst, e.Src, e.SrcHash, e.DstHash)
}

// VerifyFile re-reads src and dst and compares their digests. A mismatch is
// reported as a *VerifyError; I/O failures are returned as is.
func VerifyFile(src, dst string, algo HashAlgo) error {
	srcHash, err := HashFile(src, algo)
	if err != nil {
		return err
	}
	dstHash, err := HashFile(dst, algo)
	if err != nil {
		return err
	}
	if srcHash != dstHash {
		return &VerifyError{Src: src, Dst: dst, SrcHash: srcHash, DstHash: dstHash}
	}
	return nil
}
