package packfile

import (
	"bytes"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePack(t *testing.T, dir string, blobs ...[]byte) (string, []digest.Digest) {
	t.Helper()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	digests := make([]digest.Digest, 0, len(blobs))
	for _, b := range blobs {
		digests = append(digests, w.Add(b))
	}
	base, err := w.Commit()
	require.NoError(t, err)
	return base, digests
}

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	blobs := [][]byte{
		[]byte("hello"),
		[]byte(strings.Repeat("compressible content ", 100)),
		{0x00},
	}
	base, digests := writePack(t, dir, blobs...)

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, len(blobs), p.Len())
	assert.Equal(t, base, p.Path())
	assert.Equal(t, base+IndexSuffix, p.IndexPath())
	assert.Equal(t, base+DataSuffix, p.DataPath())

	for i, d := range digests {
		assert.True(t, p.Has(d))
		got, err := p.Get(d)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(blobs[i], got))
	}
}

func TestGetAbsentKey(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("present"))

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	absent := digest.FromString("absent")
	assert.False(t, p.Has(absent))

	_, err = p.Get(absent)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrCorrupt)
}

func TestGetMissing(t *testing.T) {
	dir := t.TempDir()
	base, digests := writePack(t, dir, []byte("one"), []byte("two"))

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	absent := digest.FromString("three")
	missing := p.GetMissing(map[digest.Digest]struct{}{
		digests[0]: {},
		digests[1]: {},
		absent:     {},
	})
	assert.Len(t, missing, 1)
	assert.Contains(t, missing, absent)

	assert.Empty(t, p.GetMissing(map[digest.Digest]struct{}{digests[0]: {}}))
}

func TestNonSHA256DigestIsMissing(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	other := digest.SHA512.FromString("data")
	assert.False(t, p.Has(other))
}

func TestDeduplication(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	d1 := w.Add([]byte("same"))
	d2 := w.Add([]byte("same"))
	assert.Equal(t, d1, d2)
	assert.Equal(t, 1, w.Len())

	_, err = w.Commit()
	require.NoError(t, err)
}

func TestIdenticalContentSameBasePath(t *testing.T) {
	dir := t.TempDir()
	base1, _ := writePack(t, dir, []byte("a"), []byte("b"))
	base2, _ := writePack(t, dir, []byte("b"), []byte("a"))
	assert.Equal(t, base1, base2)
}

func TestMissingSibling(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	require.NoError(t, os.Remove(base+DataSuffix))
	_, err := Open(base)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Open(base + "-never-existed")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTruncatedIndex(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	raw, err := os.ReadFile(base + IndexSuffix)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(base+IndexSuffix, raw[:len(raw)-5], 0o644))

	_, err = Open(base)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, fs.ErrNotExist)
}

func TestCorruptIndexChecksum(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	raw, err := os.ReadFile(base + IndexSuffix)
	require.NoError(t, err)
	raw[indexHeaderSize] ^= 0xff // flip a digest byte, CRC no longer matches
	require.NoError(t, os.WriteFile(base+IndexSuffix, raw, 0o644))

	_, err = Open(base)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBadIndexMagic(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	raw, err := os.ReadFile(base + IndexSuffix)
	require.NoError(t, err)
	copy(raw, "XXXX")
	require.NoError(t, os.WriteFile(base+IndexSuffix, raw, 0o644))

	_, err = Open(base)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBadDataMagic(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir, []byte("data"))

	raw, err := os.ReadFile(base + DataSuffix)
	require.NoError(t, err)
	copy(raw, "XXXX")
	require.NoError(t, os.WriteFile(base+DataSuffix, raw, 0o644))

	_, err = Open(base)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCorruptRecordFailsVerification(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("payload kept raw") // short enough to skip compression
	base, digests := writePack(t, dir, payload)

	raw, err := os.ReadFile(base + DataSuffix)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(base+DataSuffix, raw, 0o644))

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Get(digests[0])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	base, digests := writePack(t, dir, []byte("data"))

	p, err := Open(base)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Get(digests[0])
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDiscardLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.Add([]byte("never committed"))
	require.NoError(t, w.Discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommitLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, []byte("data"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, ent := range entries {
		assert.False(t, strings.HasPrefix(ent.Name(), "tmp-"))
	}
}

func TestEmptyPack(t *testing.T) {
	dir := t.TempDir()
	base, _ := writePack(t, dir)

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Has(digest.FromString("anything")))
}

func TestLargeBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	blob := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB
	base, digests := writePack(t, dir, blob)

	p, err := Open(base)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Get(digests[0])
	require.NoError(t, err)
	assert.True(t, bytes.Equal(blob, got))
}
