// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/fs"
)

// shebang is prepended to executables that lack an interpreter directive.
const shebang = "#!/usr/bin/env node\n"

type binTask struct {
	pkgName string
	pkgDir  string
}

// collectBins queues a linked package for shim installation if its manifest
// declares executables.
func (l *Linker) collectBins(pkgName, pkgDir string) {
	m, err := l.Manifests.ReadPackage(pkgDir)
	if err != nil || m.Bin.IsZero() {
		return
	}
	l.bins = append(l.bins, binTask{pkgName: pkgName, pkgDir: pkgDir})
}

// InstallBins creates the executable shims under modulesDir/.bin for every
// package queued during the link passes. Each target file is processed at
// most once per run.
func (l *Linker) InstallBins(modulesDir string) error {
	if len(l.bins) == 0 {
		return nil
	}
	binDir := filepath.Join(modulesDir, ".bin")
	if err := fs.EnsureDir(binDir, 0777); err != nil {
		return err
	}

	for _, task := range l.bins {
		m, err := l.Manifests.ReadPackage(task.pkgDir)
		if err != nil {
			continue
		}
		entries := m.Bin.Entries(task.pkgName)
		shims := make([]string, 0, len(entries))
		for shim := range entries {
			shims = append(shims, shim)
		}
		sort.Strings(shims)

		for _, shim := range shims {
			target := filepath.Join(task.pkgDir, entries[shim])
			ready, seen := l.binDone[target]
			if !seen {
				if _, err := os.Stat(target); err != nil {
					l.vlogf("skipping shim %s: %v", shim, err)
				} else if err := ensureExecutable(target); err != nil {
					return err
				} else {
					ready = true
				}
				l.binDone[target] = ready
			}
			if !ready {
				continue
			}
			link := filepath.Join(binDir, shim)
			if err := os.Symlink(target, link); err != nil && !os.IsExist(err) {
				return errors.Wrapf(err, "cannot create shim %s", link)
			}
		}
	}
	return nil
}

// ensureExecutable gives path an interpreter directive and execute
// permission. Files that already begin with # are assumed to carry their own
// directive. The rewrite goes through a sibling temp file and a rename so a
// concurrent reader never sees a half-written executable.
func ensureExecutable(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read executable %s", path)
	}

	if len(content) == 0 || content[0] != '#' {
		tmp := path + ".snpm-shim"
		data := append([]byte(shebang), content...)
		if err := os.WriteFile(tmp, data, 0755); err != nil {
			return errors.Wrapf(err, "cannot stage executable %s", path)
		}
		if err := fs.RenameWithFallback(tmp, path); err != nil {
			return err
		}
	}
	return errors.Wrapf(os.Chmod(path, 0755), "cannot mark %s executable", path)
}
