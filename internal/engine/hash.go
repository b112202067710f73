package engine

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// HashAlgo names a content hash used for verification.
type HashAlgo string

const (
	HashBLAKE3 HashAlgo = "blake3"
	HashXXHash HashAlgo = "xxhash"
)

// ParseHashAlgo validates a hash name from flags or config. The empty string
// selects BLAKE3.
func ParseHashAlgo(s string) (HashAlgo, error) {
	switch HashAlgo(s) {
	case "", HashBLAKE3:
		return HashBLAKE3, nil
	case HashXXHash:
		return HashXXHash, nil
	}
	return "", fmt.Errorf("unknown hash %q (use blake3 or xxhash)", s)
}

func (a HashAlgo) newHash() hash.Hash {
	if a == HashXXHash {
		return xxhash.New()
	}
	return blake3.New()
}

// HashFile computes the hash of the file at path, returning the hex-encoded digest.
func HashFile(path string, algo HashAlgo) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := algo.newHash()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
