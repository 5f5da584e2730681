package packdir

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/packdir/packdir/packfile"
)

// PackInfo describes one available pack pair on disk.
type PackInfo struct {
	// Path is the base path shared by the pair, without suffix.
	Path string

	// ModTime is the newest modification time of the two files.
	ModTime time.Time

	// Size is the combined size of both files in bytes.
	Size int64
}

// ScanDir lists the pack pairs under dir with a single directory read.
// A pack is reported only once both of its sibling files have been
// observed, so a pair still being placed by a concurrent writer stays
// invisible. A missing directory counts as an empty store; files
// vanishing between listing and stat are skipped.
func ScanDir(dir string) ([]PackInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type partial struct {
		info      PackInfo
		idx, data bool
	}
	found := make(map[string]*partial)
	var order []string

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		var base string
		switch {
		case strings.HasSuffix(name, packfile.IndexSuffix):
			base = strings.TrimSuffix(name, packfile.IndexSuffix)
		case strings.HasSuffix(name, packfile.DataSuffix):
			base = strings.TrimSuffix(name, packfile.DataSuffix)
		default:
			continue
		}

		info, err := ent.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}

		p, ok := found[base]
		if !ok {
			p = &partial{info: PackInfo{Path: filepath.Join(dir, base)}}
			found[base] = p
			order = append(order, base)
		}
		if strings.HasSuffix(name, packfile.IndexSuffix) {
			p.idx = true
		} else {
			p.data = true
		}
		p.info.Size += info.Size()
		if info.ModTime().After(p.info.ModTime) {
			p.info.ModTime = info.ModTime()
		}
	}

	var packs []PackInfo
	for _, base := range order {
		if p := found[base]; p.idx && p.data {
			packs = append(packs, p.info)
		}
	}
	return packs, nil
}

// ScanDirSorted is ScanDir ordered newest-mtime-first, with the path as a
// tie-break: recently written packs are the most likely to satisfy the
// next query.
func ScanDirSorted(dir string) ([]PackInfo, error) {
	packs, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(packs, func(i, j int) bool {
		if packs[i].ModTime.Equal(packs[j].ModTime) {
			return packs[i].Path < packs[j].Path
		}
		return packs[i].ModTime.After(packs[j].ModTime)
	})
	return packs, nil
}
