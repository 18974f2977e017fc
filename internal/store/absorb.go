// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/fs"
	"github.com/snpm-io/snpm/internal/manifest"
)

// lockName is the flock file guarding concurrent absorptions into one store.
const lockName = ".lock"

// Absorber relocates package directories produced by a bootstrap install (or
// a git fetch) into the store under their canonical keys. One Absorber is
// good for one run; its visited set is what keeps symlink cycles finite.
type Absorber struct {
	Index *Index

	visited map[string]bool
}

// NewAbsorber returns an absorber feeding ix.
func NewAbsorber(ix *Index) *Absorber {
	return &Absorber{
		Index:   ix,
		visited: make(map[string]bool),
	}
}

// Absorb collects every package directory under modulesDir, including nested
// node_modules trees, and moves each into the store. Directories whose key
// already has a store entry are deleted as redundant, after their own nested
// tree has been absorbed. The store lock is held for the duration.
func (a *Absorber) Absorb(modulesDir string) ([]Key, error) {
	if err := fs.EnsureDir(a.Index.Dir(), 0777); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(a.Index.Dir(), lockName))
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrap(err, "cannot lock store")
	}
	defer lock.Unlock()

	return a.absorbModules(modulesDir)
}

func (a *Absorber) absorbModules(modulesDir string) ([]Key, error) {
	canonical, err := fs.Canonical(modulesDir)
	if err != nil {
		return nil, err
	}
	if a.visited[canonical] {
		return nil, nil
	}
	a.visited[canonical] = true

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cannot read modules directory %s", modulesDir)
	}

	var keys []Key
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, "@") {
			scopeDir := filepath.Join(modulesDir, name)
			scoped, err := os.ReadDir(scopeDir)
			if err != nil {
				return keys, errors.Wrapf(err, "cannot read scope directory %s", scopeDir)
			}
			for _, sub := range scoped {
				if strings.HasPrefix(sub.Name(), ".") {
					continue
				}
				ks, err := a.absorbPackage(filepath.Join(scopeDir, sub.Name()))
				if err != nil {
					return keys, err
				}
				keys = append(keys, ks...)
			}
			continue
		}
		ks, err := a.absorbPackage(filepath.Join(modulesDir, name))
		if err != nil {
			return keys, err
		}
		keys = append(keys, ks...)
	}
	return keys, nil
}

// absorbPackage moves one package directory into the store, recursing into
// its nested node_modules first so those manifests are read while still
// reachable.
func (a *Absorber) absorbPackage(pkgDir string) ([]Key, error) {
	canonical, err := fs.Canonical(pkgDir)
	if err != nil {
		return nil, err
	}
	if a.visited[canonical] {
		return nil, nil
	}
	a.visited[canonical] = true

	if !fs.DirExists(pkgDir) {
		return nil, nil
	}

	m, err := manifest.ReadPackage(pkgDir)
	if err != nil {
		return nil, err
	}
	key := Key{Name: m.Name, Version: m.Version}
	a.Index.Add(key.Name, key.Version)

	keys, err := a.absorbModules(filepath.Join(pkgDir, "node_modules"))
	if err != nil {
		return keys, err
	}

	target := key.Path(a.Index.Dir())
	if fs.DirExists(target) {
		// The scratch copy is redundant; an equivalent entry landed first.
		if err := os.RemoveAll(pkgDir); err != nil {
			return keys, errors.Wrapf(err, "cannot remove redundant copy of %s", key)
		}
		return append(keys, key), nil
	}

	if err := fs.EnsureDir(filepath.Dir(target), 0777); err != nil {
		return keys, err
	}
	if err := fs.RenameWithFallback(pkgDir, target); err != nil {
		if !benignMoveError(err) {
			return keys, errors.Wrapf(err, "cannot move %s into store", key)
		}
		// A concurrent install won the move; drop our copy.
		if rerr := os.RemoveAll(pkgDir); rerr != nil {
			return keys, errors.Wrapf(rerr, "cannot remove losing copy of %s", key)
		}
	}
	return append(keys, key), nil
}

// Place moves a freshly fetched package directory into the store under key.
// Used by direct-fetch hydration, which stages a tarball's contents outside
// the store and then lands them with the same tolerance rules as Absorb.
func (a *Absorber) Place(key Key, dir string) error {
	a.Index.Add(key.Name, key.Version)

	target := key.Path(a.Index.Dir())
	if fs.DirExists(target) {
		return errors.Wrapf(os.RemoveAll(dir), "cannot remove redundant copy of %s", key)
	}
	if err := fs.EnsureDir(filepath.Dir(target), 0777); err != nil {
		return err
	}
	if err := fs.RenameWithFallback(dir, target); err != nil {
		if !benignMoveError(err) {
			return errors.Wrapf(err, "cannot move %s into store", key)
		}
		return errors.Wrapf(os.RemoveAll(dir), "cannot remove losing copy of %s", key)
	}
	return nil
}

// benignMoveError reports whether a store move failed only because the target
// was created concurrently.
func benignMoveError(err error) bool {
	if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) || os.IsExist(errors.Cause(err)) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "directory not empty")
}
