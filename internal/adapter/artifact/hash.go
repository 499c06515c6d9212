// Package artifact locates, opens and fingerprints ADRU source files and
// their decoded text artifacts on disk.
package artifact

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Supported content hash algorithms.
const (
	HashMD5     = "md5"
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"
)

// DefaultChunkSize is the read size used while hashing.
const DefaultChunkSize = 4 * 1024 * 1024

// HashCache memoizes content hashes by absolute path for the lifetime of one
// run. A file changed during the run keeps its first hash.
type HashCache struct {
	algorithm string
	chunkSize int
	newHash   func() hash.Hash

	mu      sync.Mutex
	digests map[string]string
}

// NewHashCache returns an empty cache hashing with the named algorithm.
func NewHashCache(algorithm string, chunkSize int) (*HashCache, error) {
	if algorithm == "" {
		algorithm = HashMD5
	}
	newHash, err := hashFunc(algorithm)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &HashCache{
		algorithm: algorithm,
		chunkSize: chunkSize,
		newHash:   newHash,
		digests:   make(map[string]string),
	}, nil
}

func hashFunc(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case HashMD5:
		return md5.New, nil
	case HashSHA256:
		return sha256.New, nil
	case HashBLAKE2b:
		return func() hash.Hash {
			h, _ := blake2b.New256(nil) // only fails for oversized keys
			return h
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Algorithm returns the configured algorithm name.
func (c *HashCache) Algorithm() string {
	return c.algorithm
}

// Hash returns the hex digest of the file's bytes.
func (c *HashCache) Hash(path string) (string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	key = filepath.Clean(key)

	c.mu.Lock()
	digest, ok := c.digests[key]
	c.mu.Unlock()
	if ok {
		return digest, nil
	}

	digest, err = c.compute(key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.digests[key] = digest
	c.mu.Unlock()
	return digest, nil
}

// Len returns the number of memoized digests.
func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.digests)
}

func (c *HashCache) compute(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := c.newHash()
	if _, err := io.CopyBuffer(h, f, make([]byte, c.chunkSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
