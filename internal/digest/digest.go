// Package digest computes stable content fingerprints used to compare images.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Supported algorithm names.
const (
	Blake2b256 = "blake2b-256"
	SHA256     = "sha256"
)

var constructors = map[string]func() (hash.Hash, error){
	Blake2b256: func() (hash.Hash, error) { return blake2b.New256(nil) },
	SHA256:     func() (hash.Hash, error) { return sha256.New(), nil },
}

// IsSupported reports whether name is a known algorithm.
func IsSupported(name string) bool {
	_, ok := constructors[name]
	return ok
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hasher produces fixed-length lowercase hex digests.
type Hasher struct {
	algorithm string
	newHash   func() (hash.Hash, error)
}

// New returns a Hasher for the named algorithm.
func New(algorithm string) (*Hasher, error) {
	fn, ok := constructors[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported digest algorithm %q", algorithm)
	}
	return &Hasher{algorithm: algorithm, newHash: fn}, nil
}

// Algorithm returns the algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Reader digests everything read from r.
func (h *Hasher) Reader(r io.Reader) (string, error) {
	hh, err := h.newHash()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hh, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hh.Sum(nil)), nil
}

// Bytes digests data.
func (h *Hasher) Bytes(data []byte) string {
	hh, err := h.newHash()
	if err != nil {
		// blake2b only fails for oversized keys and no key is used.
		panic(err)
	}
	hh.Write(data)
	return hex.EncodeToString(hh.Sum(nil))
}

// File digests the contents of the file at path.
func (h *Hasher) File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.Reader(f)
}
