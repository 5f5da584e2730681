package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	codec, err := NewCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	data := []byte(strings.Repeat("highly repetitive pack record ", 50))
	compressed, ok := codec.Compress(data)
	require.True(t, ok)
	assert.Less(t, len(compressed), len(data))

	inflated, err := codec.Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, inflated))
}

func TestCompressSkipsSmallRecords(t *testing.T) {
	codec, err := NewCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	data := []byte("tiny")
	out, ok := codec.Compress(data)
	assert.False(t, ok)
	assert.Equal(t, data, out)
}

func TestCompressSkipsIncompressible(t *testing.T) {
	codec, err := NewCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	// Pseudo-random bytes do not shrink under zstd.
	data := make([]byte, 4096)
	state := uint32(0x9e3779b9)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}

	_, ok := codec.Compress(data)
	assert.False(t, ok)
}

func TestDecompressGarbageFails(t *testing.T) {
	codec, err := NewCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	_, err = codec.Decompress([]byte("definitely not zstd"))
	assert.Error(t, err)
}
