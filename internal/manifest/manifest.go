// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest reads and writes package.json documents. Reads go through
// a typed view of the handful of fields the installer consumes; mutations go
// through Doc, which round-trips every field the file carried.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/depspec"
)

// Name is the manifest filename within a package or project directory.
const Name = "package.json"

// Manifest is the subset of package.json the installer reads. Sections are
// nil when the document omits them.
type Manifest struct {
	Name                 string
	Version              string
	Bin                  Bin
	Dependencies         map[string]string
	DevDependencies      map[string]string
	PeerDependencies     map[string]string
	PeerDependenciesMeta map[string]PeerMeta
}

// PeerMeta is the per-peer metadata section.
type PeerMeta struct {
	Optional bool `json:"optional"`
}

// Bin holds a package's executable declarations: either a single filename or
// a mapping of shim name to filename.
type Bin struct {
	Str string
	Map map[string]string
}

// IsZero reports whether the package declares no executables.
func (b Bin) IsZero() bool {
	return b.Str == "" && len(b.Map) == 0
}

// Entries normalizes the two bin forms into shim-name -> relative file path.
// The string form installs under the simple part of the package name.
func (b Bin) Entries(pkgName string) map[string]string {
	if b.Str != "" {
		return map[string]string{depspec.SimpleName(pkgName): b.Str}
	}
	return b.Map
}

// UnmarshalJSON accepts both the string and the mapping form.
func (b *Bin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Str = s
		return nil
	}
	return json.Unmarshal(data, &b.Map)
}

type rawManifest struct {
	Name                 string              `json:"name,omitempty"`
	Version              string              `json:"version,omitempty"`
	Bin                  Bin                 `json:"bin,omitempty"`
	Dependencies         map[string]string   `json:"dependencies,omitempty"`
	DevDependencies      map[string]string   `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string   `json:"peerDependencies,omitempty"`
	PeerDependenciesMeta map[string]PeerMeta `json:"peerDependenciesMeta,omitempty"`
}

// Read loads the manifest at path.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := rawManifest{}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "cannot parse manifest %s", path)
	}
	return &Manifest{
		Name:                 raw.Name,
		Version:              raw.Version,
		Bin:                  raw.Bin,
		Dependencies:         raw.Dependencies,
		DevDependencies:      raw.DevDependencies,
		PeerDependencies:     raw.PeerDependencies,
		PeerDependenciesMeta: raw.PeerDependenciesMeta,
	}, nil
}

// ReadDir loads the manifest inside dir.
func ReadDir(dir string) (*Manifest, error) {
	return Read(filepath.Join(dir, Name))
}

// ReadPackage loads the manifest of a store-bound package directory. Missing
// or nameless manifests are fatal errors naming the offending path.
func ReadPackage(dir string) (*Manifest, error) {
	m, err := ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "package at %s has no readable manifest", dir)
	}
	if m.Name == "" || m.Version == "" {
		return nil, errors.Errorf("package manifest at %s is missing name or version", dir)
	}
	return m, nil
}

// Cache memoizes manifest reads by directory path, exactly as the caller
// spells it (paths are not canonicalized). At most one entry exists per
// path; concurrent readers share it.
type Cache struct {
	mu sync.Mutex
	m  map[string]*Manifest
}

// NewCache returns an empty manifest cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]*Manifest)}
}

// ReadPackage is ReadPackage memoized on dir.
func (c *Cache) ReadPackage(dir string) (*Manifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.m[dir]; ok {
		return m, nil
	}
	m, err := ReadPackage(dir)
	if err != nil {
		return nil, err
	}
	c.m[dir] = m
	return m, nil
}
