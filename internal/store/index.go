// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/semv"
)

// Index is the in-memory view of the store: package name -> set of exact
// versions present on disk. It is seeded by Scan and only ever added to
// during a run.
type Index struct {
	dir string

	mu       sync.RWMutex
	versions map[string]map[string]bool
}

// NewIndex returns an empty index over storeDir.
func NewIndex(storeDir string) *Index {
	return &Index{
		dir:      storeDir,
		versions: make(map[string]map[string]bool),
	}
}

// Dir returns the store directory the index describes.
func (ix *Index) Dir() string { return ix.dir }

// Scan seeds the index from disk. Direct children named @org are descended
// one level; every terminal directory name splits on its last @ into name and
// version. Malformed names are skipped silently. A missing store directory
// scans as empty.
func (ix *Index) Scan() error {
	dirents, err := readDirents(ix.dir)
	if err != nil {
		return err
	}
	for _, de := range dirents {
		name := de.Name()
		if strings.HasPrefix(name, ".") || !de.IsDir() {
			continue
		}
		if strings.HasPrefix(name, "@") {
			scoped, err := readDirents(filepath.Join(ix.dir, name))
			if err != nil {
				return err
			}
			for _, sde := range scoped {
				if !sde.IsDir() {
					continue
				}
				if n, v, ok := splitEntryName(sde.Name()); ok {
					ix.Add(name+"/"+n, v)
				}
			}
			continue
		}
		if n, v, ok := splitEntryName(name); ok {
			ix.Add(n, v)
		}
	}
	return nil
}

func readDirents(dir string) (godirwalk.Dirents, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot scan store directory %s", dir)
	}
	return dirents, nil
}

// Add records name@version. Idempotent.
func (ix *Index) Add(name, version string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	set, ok := ix.versions[name]
	if !ok {
		set = make(map[string]bool)
		ix.versions[name] = set
	}
	set[version] = true
}

// Has reports whether name@version is present.
func (ix *Index) Has(name, version string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.versions[name][version]
}

// Any reports whether any version of name is present.
func (ix *Index) Any(name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.versions[name]) > 0
}

// Versions returns the known versions of name, sorted ascending.
func (ix *Index) Versions(name string) []string {
	ix.mu.RLock()
	set := ix.versions[name]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	ix.mu.RUnlock()

	semv.SortAscending(out)
	return out
}

// Names returns every package name in the index, sorted.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	out := make([]string, 0, len(ix.versions))
	for n := range ix.versions {
		out = append(out, n)
	}
	ix.mu.RUnlock()

	sort.Strings(out)
	return out
}

// MaxSatisfying returns the highest cached version of name within rng, or
// the empty string when no cached version satisfies.
func (ix *Index) MaxSatisfying(name, rng string) (string, error) {
	return semv.MaxSatisfying(ix.Versions(name), rng)
}
