package files

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

const (
	tokenBytes    = 16
	hashChunkSize = 8 * 1024
)

// NewToken returns 32 lowercase hex characters drawn from 128 random bits.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate file token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashContent returns the hex MD5 digest of r, reading it in fixed-size
// chunks so memory use does not grow with the stream.
func HashContent(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to hash content: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentHasher computes the same digest as HashContent from the bytes
// written to it, so an upload can be hashed while it streams to storage.
type ContentHasher struct {
	h hash.Hash
}

func NewContentHasher() *ContentHasher {
	return &ContentHasher{h: md5.New()}
}

func (c *ContentHasher) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

func (c *ContentHasher) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}
