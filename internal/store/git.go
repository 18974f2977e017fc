// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/fs"
	"github.com/snpm-io/snpm/internal/manifest"
)

// AbsorbGit clones a git-sourced package into scratchDir, checks out ref when
// given, and absorbs the working tree into the store under the name@version
// its manifest declares. The clone's .git directory is stripped; the store
// holds plain package trees only.
func (a *Absorber) AbsorbGit(remote, ref, scratchDir string) (Key, error) {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s#%s", remote, ref)
	local := filepath.Join(scratchDir, fmt.Sprintf("git-%x", h.Sum64()))

	repo, err := vcs.NewRepo(remote, local)
	if err != nil {
		return Key{}, errors.Wrapf(err, "cannot set up repository for %s", remote)
	}
	if err := repo.Get(); err != nil {
		return Key{}, errors.Wrapf(err, "cannot clone %s", remote)
	}
	if ref != "" {
		if err := repo.UpdateVersion(ref); err != nil {
			return Key{}, errors.Wrapf(err, "cannot check out %s of %s", ref, remote)
		}
	}

	m, err := manifest.ReadPackage(local)
	if err != nil {
		return Key{}, err
	}
	key := Key{Name: m.Name, Version: m.Version}
	a.Index.Add(key.Name, key.Version)

	if err := os.RemoveAll(filepath.Join(local, ".git")); err != nil {
		return Key{}, errors.Wrapf(err, "cannot strip VCS metadata from %s", key)
	}

	target := key.Path(a.Index.Dir())
	if fs.DirExists(target) {
		return key, errors.Wrapf(os.RemoveAll(local), "cannot remove redundant clone of %s", key)
	}
	if err := fs.EnsureDir(filepath.Dir(target), 0777); err != nil {
		return Key{}, err
	}
	if err := fs.RenameWithFallback(local, target); err != nil && !benignMoveError(err) {
		return Key{}, errors.Wrapf(err, "cannot move %s into store", key)
	}
	return key, nil
}
