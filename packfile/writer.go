package packfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/packdir/packdir/internal/compression"
)

// Writer accumulates records in memory and commits them as one immutable
// pack pair. Both files are staged as temporaries and renamed into place,
// data file first, so readers can never pair a visible index with a
// half-written data sibling. A Writer is single-use: after Commit or
// Discard it must not be touched again.
type Writer struct {
	dir   string
	codec *compression.Codec
	buf   bytes.Buffer
	spans map[digest.Digest]span
}

type span struct {
	offset, length uint64
}

// NewWriter creates a writer that will place its pack pair in dir.
func NewWriter(dir string) (*Writer, error) {
	codec, err := compression.NewCodec(0)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		dir:   dir,
		codec: codec,
		spans: make(map[digest.Digest]span),
	}
	w.buf.WriteString(dataMagic)
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], version)
	w.buf.Write(v[:])
	return w, nil
}

// Add appends data as one record, deduplicating by content, and returns
// its digest.
func (w *Writer) Add(data []byte) digest.Digest {
	d := digest.FromBytes(data)
	if _, ok := w.spans[d]; ok {
		return d
	}
	payload, compressed := w.codec.Compress(data)
	flag := byte(flagRaw)
	if compressed {
		flag = flagZstd
	}
	offset := uint64(w.buf.Len())
	w.buf.WriteByte(flag)
	w.buf.Write(payload)
	w.spans[d] = span{offset: offset, length: uint64(1 + len(payload))}
	return d
}

// Len returns the number of records added so far.
func (w *Writer) Len() int { return len(w.spans) }

// Commit writes the pack pair into the writer's directory and returns the
// base path of the new pack. The pack is named after the digest of its
// index entries, so identical content commits to the same pair.
func (w *Writer) Commit() (string, error) {
	defer w.codec.Close()

	raws := make([][]byte, 0, len(w.spans))
	byRaw := make(map[string]span, len(w.spans))
	for d, s := range w.spans {
		raw, ok := rawDigest(d)
		if !ok {
			return "", fmt.Errorf("packfile: digest %s is not sha256", d)
		}
		raws = append(raws, raw)
		byRaw[string(raw)] = s
	}
	sort.Slice(raws, func(i, j int) bool { return bytes.Compare(raws[i], raws[j]) < 0 })

	entries := make([]byte, 0, len(raws)*indexEntrySize)
	var u64 [8]byte
	for _, raw := range raws {
		s := byRaw[string(raw)]
		entries = append(entries, raw...)
		binary.BigEndian.PutUint64(u64[:], s.offset)
		entries = append(entries, u64[:]...)
		binary.BigEndian.PutUint64(u64[:], s.length)
		entries = append(entries, u64[:]...)
	}

	index := make([]byte, 0, indexHeaderSize+len(entries)+indexCRCSize)
	index = append(index, indexMagic...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], version)
	index = append(index, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], uint32(len(raws)))
	index = append(index, u32[:]...)
	index = append(index, entries...)
	binary.BigEndian.PutUint32(u32[:], crc32.Checksum(index, castagnoli))
	index = append(index, u32[:]...)

	base := filepath.Join(w.dir, "pack-"+digest.FromBytes(entries).Encoded())

	if err := placeFile(w.dir, base+DataSuffix, w.buf.Bytes()); err != nil {
		return "", err
	}
	if err := placeFile(w.dir, base+IndexSuffix, index); err != nil {
		return "", err
	}
	return base, nil
}

// Discard drops everything the writer accumulated without touching disk.
func (w *Writer) Discard() error {
	w.spans = nil
	w.buf.Reset()
	return w.codec.Close()
}

// placeFile writes content to a temporary file in dir and renames it onto
// path, so the file appears to readers only once complete.
func placeFile(dir, path string, content []byte) error {
	tmp, err := os.CreateTemp(dir, "tmp-pack-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
