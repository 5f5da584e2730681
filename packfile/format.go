// Package packfile implements the on-disk pack format: an immutable pair
// of sibling files sharing a base path, a sorted digest index (".idx") and
// a record data file (".pack"). Packs are written once, atomically, and
// only ever read afterwards.
//
// Index layout, all integers big-endian:
//
//	magic "PDIR" | u32 version | u32 count
//	count x (32-byte sha256 digest | u64 offset | u64 length)
//	u32 CRC-32C of everything above
//
// Entries are sorted by digest. Offset and length locate one record in the
// data file: a flag byte (raw or zstd) followed by the payload.
//
// Data layout: magic "PDAT" | u32 version | records.
package packfile

import (
	"encoding/hex"
	"errors"
	"os"

	"github.com/opencontainers/go-digest"
)

// Suffixes of the two sibling files forming a pack.
const (
	IndexSuffix = ".idx"
	DataSuffix  = ".pack"
)

const (
	indexMagic = "PDIR"
	dataMagic  = "PDAT"
	version    = 1

	digestSize      = 32
	indexHeaderSize = 12
	indexEntrySize  = digestSize + 8 + 8
	indexCRCSize    = 4
	dataHeaderSize  = 8
)

// Record flags.
const (
	flagRaw  = 0x00
	flagZstd = 0x01
)

var (
	// ErrCorrupt marks a pack whose contents fail to parse or validate.
	// It is distinguishable from fs.ErrNotExist, which signals a benign
	// race with a concurrent repack rather than damage.
	ErrCorrupt = errors.New("packfile: corrupt pack")

	// ErrNotFound is returned when a key is absent from a pack. Callers
	// should test with errors.Is.
	ErrNotFound = os.ErrNotExist
)

// rawDigest returns the 32 raw bytes of a sha256 digest. Digests with
// other algorithms or malformed hex cannot be present in a pack.
func rawDigest(d digest.Digest) ([]byte, bool) {
	if d.Algorithm() != digest.SHA256 {
		return nil, false
	}
	raw, err := hex.DecodeString(d.Encoded())
	if err != nil || len(raw) != digestSize {
		return nil, false
	}
	return raw, true
}
