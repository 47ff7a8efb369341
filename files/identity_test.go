package files

import (
	"bytes"
	"crypto/rand"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewTokenFormat(t *testing.T) {
	token, err := NewToken()
	require.NoError(t, err)
	assert.Regexp(t, tokenPattern, token)
}

func TestNewTokenUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		token, err := NewToken()
		require.NoError(t, err)
		seen[token] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestHashContent(t *testing.T) {
	digest, err := HashContent(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", digest)

	empty, err := HashContent(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", empty)
}

func TestHashContentDeterministic(t *testing.T) {
	data := make([]byte, 3*hashChunkSize+17)
	_, err := rand.Read(data)
	require.NoError(t, err)

	a, err := HashContent(bytes.NewReader(data))
	require.NoError(t, err)
	b, err := HashContent(bytes.NewReader(append([]byte(nil), data...)))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	for _, i := range []int{0, hashChunkSize, len(data) - 1} {
		changed := append([]byte(nil), data...)
		changed[i] ^= 0x01
		c, err := HashContent(bytes.NewReader(changed))
		require.NoError(t, err)
		assert.NotEqual(t, a, c, "flipping byte %d", i)
	}
}

type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func TestHashContentLargeStream(t *testing.T) {
	const size = 64 << 20
	digest, err := HashContent(io.LimitReader(repeatReader('a'), size))
	require.NoError(t, err)
	assert.Regexp(t, tokenPattern, digest)
}

func TestContentHasherMatchesHashContent(t *testing.T) {
	data := bytes.Repeat([]byte("shifter"), 5000)

	want, err := HashContent(bytes.NewReader(data))
	require.NoError(t, err)

	h := NewContentHasher()
	_, err = io.Copy(io.Discard, io.TeeReader(bytes.NewReader(data), h))
	require.NoError(t, err)
	assert.Equal(t, want, h.Sum())
}

func TestPrettySize(t *testing.T) {
	cases := map[int64]string{
		0:                 "0B",
		999:               "999B",
		1000:              "1KB",
		1999:              "1KB",
		1_500_000:         "1MB",
		2_000_000_000:     "2GB",
		5_000_000_000_000: "5TB",
	}
	for in, want := range cases {
		assert.Equal(t, want, PrettySize(in), "PrettySize(%d)", in)
	}
}
