package packfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/packdir/packdir/internal/compression"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Pack is an open, read-only handle onto one index/data sibling pair.
// The index is held in memory; the data file stays open for record reads
// until Close, which is safe to call more than once.
type Pack struct {
	base    string
	entries []byte // count x indexEntrySize, sorted by digest
	count   int
	data    *os.File
	codec   *compression.Codec
	closed  bool
}

// Open opens the pack at base (the shared path of the pair, without
// suffix). A missing sibling file surfaces as fs.ErrNotExist; any other
// validation failure wraps ErrCorrupt.
func Open(base string) (*Pack, error) {
	raw, err := os.ReadFile(base + IndexSuffix)
	if err != nil {
		return nil, err
	}
	entries, count, err := parseIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base+IndexSuffix, err)
	}

	data, err := os.Open(base + DataSuffix)
	if err != nil {
		return nil, err
	}
	if err := checkDataHeader(data); err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("%s: %w", base+DataSuffix, err)
	}

	codec, err := compression.NewCodec(0)
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	return &Pack{
		base:    base,
		entries: entries,
		count:   count,
		data:    data,
		codec:   codec,
	}, nil
}

func parseIndex(raw []byte) ([]byte, int, error) {
	if len(raw) < indexHeaderSize+indexCRCSize {
		return nil, 0, fmt.Errorf("truncated index: %w", ErrCorrupt)
	}
	if string(raw[:4]) != indexMagic {
		return nil, 0, fmt.Errorf("bad index magic: %w", ErrCorrupt)
	}
	if v := binary.BigEndian.Uint32(raw[4:8]); v != version {
		return nil, 0, fmt.Errorf("unsupported index version %d: %w", v, ErrCorrupt)
	}
	count := int(binary.BigEndian.Uint32(raw[8:12]))
	if want := indexHeaderSize + count*indexEntrySize + indexCRCSize; len(raw) != want {
		return nil, 0, fmt.Errorf("index is %d bytes, want %d: %w", len(raw), want, ErrCorrupt)
	}
	body := raw[:len(raw)-indexCRCSize]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(raw[len(raw)-indexCRCSize:]) {
		return nil, 0, fmt.Errorf("index checksum mismatch: %w", ErrCorrupt)
	}
	entries := raw[indexHeaderSize : len(raw)-indexCRCSize]
	for i := 1; i < count; i++ {
		if bytes.Compare(digestAt(entries, i-1), digestAt(entries, i)) >= 0 {
			return nil, 0, fmt.Errorf("index entries out of order: %w", ErrCorrupt)
		}
	}
	return entries, count, nil
}

func checkDataHeader(f *os.File) error {
	var hdr [dataHeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("short data header: %w", ErrCorrupt)
	}
	if string(hdr[:4]) != dataMagic {
		return fmt.Errorf("bad data magic: %w", ErrCorrupt)
	}
	if v := binary.BigEndian.Uint32(hdr[4:]); v != version {
		return fmt.Errorf("unsupported data version %d: %w", v, ErrCorrupt)
	}
	return nil
}

func digestAt(entries []byte, i int) []byte {
	return entries[i*indexEntrySize : i*indexEntrySize+digestSize]
}

// Path returns the base path shared by the pair.
func (p *Pack) Path() string { return p.base }

// IndexPath returns the path of the index file.
func (p *Pack) IndexPath() string { return p.base + IndexSuffix }

// DataPath returns the path of the data file.
func (p *Pack) DataPath() string { return p.base + DataSuffix }

// Len returns the number of records in the pack.
func (p *Pack) Len() int { return p.count }

func (p *Pack) find(d digest.Digest) (offset, length uint64, ok bool) {
	raw, ok := rawDigest(d)
	if !ok {
		return 0, 0, false
	}
	i := sort.Search(p.count, func(i int) bool {
		return bytes.Compare(digestAt(p.entries, i), raw) >= 0
	})
	if i == p.count || !bytes.Equal(digestAt(p.entries, i), raw) {
		return 0, 0, false
	}
	e := p.entries[i*indexEntrySize:]
	return binary.BigEndian.Uint64(e[digestSize : digestSize+8]),
		binary.BigEndian.Uint64(e[digestSize+8 : digestSize+16]),
		true
}

// Has reports whether the pack contains d.
func (p *Pack) Has(d digest.Digest) bool {
	_, _, ok := p.find(d)
	return ok
}

// GetMissing returns the subset of keys not present in this pack.
func (p *Pack) GetMissing(keys map[digest.Digest]struct{}) map[digest.Digest]struct{} {
	missing := make(map[digest.Digest]struct{})
	for d := range keys {
		if !p.Has(d) {
			missing[d] = struct{}{}
		}
	}
	return missing
}

// Get reads and verifies the record stored under d. A key absent from the
// pack reports ErrNotFound; a record that fails to read, inflate, or hash
// back to its digest reports ErrCorrupt.
func (p *Pack) Get(d digest.Digest) ([]byte, error) {
	if p.closed {
		return nil, fmt.Errorf("packfile: %s: %w", p.base, os.ErrClosed)
	}
	offset, length, ok := p.find(d)
	if !ok {
		return nil, fmt.Errorf("packfile: %s not in %s: %w", d, p.base, ErrNotFound)
	}
	if length == 0 {
		return nil, fmt.Errorf("packfile: empty record for %s: %w", d, ErrCorrupt)
	}

	buf := make([]byte, length)
	if _, err := p.data.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("packfile: read %s: %v: %w", d, err, ErrCorrupt)
	}

	payload := buf[1:]
	switch buf[0] {
	case flagRaw:
	case flagZstd:
		inflated, err := p.codec.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("packfile: inflate %s: %v: %w", d, err, ErrCorrupt)
		}
		payload = inflated
	default:
		return nil, fmt.Errorf("packfile: unknown record flag %#x: %w", buf[0], ErrCorrupt)
	}

	if digest.FromBytes(payload) != d {
		return nil, fmt.Errorf("packfile: record for %s fails verification: %w", d, ErrCorrupt)
	}
	return payload, nil
}

// Close releases the data file handle. Closing an already closed pack is
// a no-op.
func (p *Pack) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.codec.Close()
	return p.data.Close()
}
