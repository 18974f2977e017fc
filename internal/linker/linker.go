// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linker materializes the visible module layout: symlinks from each
// node_modules directory into store entries, peer-dependency links, and
// executable shims.
package linker

import (
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/depspec"
	"github.com/snpm-io/snpm/internal/fs"
	"github.com/snpm-io/snpm/internal/manifest"
	"github.com/snpm-io/snpm/internal/store"
)

// Linker drives the three link passes over one project. Its tables are
// append-only for the run: depDirs is the incremental link table consulted by
// the peer pass, linked is the canonical-path set that terminates cycles.
type Linker struct {
	Index     *store.Index
	Manifests *manifest.Cache
	Out       *log.Logger // nil silences progress output
	Verbose   bool

	// FetchGit, when set, resolves a git-sourced dependency discovered
	// during linking into a store entry.
	FetchGit func(remote, ref string) (store.Key, error)

	depDirs map[string]map[string]string
	linked  map[string]bool
	bins    []binTask
	binDone map[string]bool
}

// New returns a linker over the given store index.
func New(ix *store.Index, manifests *manifest.Cache) *Linker {
	return &Linker{
		Index:     ix,
		Manifests: manifests,
		depDirs:   make(map[string]map[string]string),
		linked:    make(map[string]bool),
		binDone:   make(map[string]bool),
	}
}

func (l *Linker) vlogf(format string, args ...interface{}) {
	if l.Verbose && l.Out != nil {
		l.Out.Printf(format, args...)
	}
}

// LinkDeps links each dependency of deps into modulesDir (pass A) and, when
// transitive is set, repeats inside every newly linked store entry (pass B).
// Values may be semver ranges, link:/file: paths, or git: remotes.
func (l *Linker) LinkDeps(modulesDir string, deps map[string]string, transitive bool) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := depspec.ParseValue(name, deps[name])
		switch {
		case s.IsLink():
			if err := l.linkLocal(modulesDir, s); err != nil {
				return err
			}
		case s.IsGit():
			if err := l.linkGit(modulesDir, s, transitive); err != nil {
				return err
			}
		default:
			if err := l.linkStore(modulesDir, s, transitive); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkStore links one registry-sourced dependency against the best store
// entry and descends into it when transitive linking is on.
func (l *Linker) linkStore(modulesDir string, s depspec.Spec, transitive bool) error {
	version, err := l.Index.MaxSatisfying(s.Name, s.Range)
	if err != nil {
		return err
	}
	if version == "" {
		return errors.Errorf("no version of %s in the store satisfies %q", s.Name, s.Range)
	}
	target := store.Key{Name: s.Name, Version: version}.Path(l.Index.Dir())

	actual, err := l.linkInto(modulesDir, s.Name, target)
	if err != nil {
		return err
	}
	l.collectBins(s.Name, actual)

	if !transitive {
		return nil
	}
	return l.linkTransitive(actual)
}

// linkTransitive is pass B for one store entry: link its own declared
// dependencies inside its node_modules. First arrival wins per canonical
// path, which is also what terminates cycles.
func (l *Linker) linkTransitive(pkgDir string) error {
	canonical, err := fs.Canonical(pkgDir)
	if err != nil {
		return err
	}
	if l.linked[canonical] {
		return nil
	}
	l.linked[canonical] = true

	m, err := l.Manifests.ReadPackage(pkgDir)
	if err != nil {
		return err
	}
	if len(m.Dependencies) == 0 {
		return nil
	}
	return l.LinkDeps(filepath.Join(pkgDir, "node_modules"), m.Dependencies, true)
}

// linkLocal links a link:/file: dependency straight at its path. The target
// manifest is consulted only for executables; transitive dependencies of a
// linked package are its own business.
func (l *Linker) linkLocal(modulesDir string, s depspec.Spec) error {
	target := s.Link
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(modulesDir), target)
	}
	actual, err := l.linkInto(modulesDir, s.Name, target)
	if err != nil {
		return err
	}
	if _, err := l.Manifests.ReadPackage(actual); err != nil {
		l.vlogf("skipping executables of linked %s: %v", s.Name, err)
		return nil
	}
	l.collectBins(s.Name, actual)
	return nil
}

// linkGit resolves a git-sourced dependency through the FetchGit hook and
// links the resulting store entry.
func (l *Linker) linkGit(modulesDir string, s depspec.Spec, transitive bool) error {
	if l.FetchGit == nil {
		l.vlogf("skipping git dependency %s: no fetcher configured", s.Name)
		return nil
	}
	remote, ref := s.GitRemote()
	key, err := l.FetchGit(remote, ref)
	if err != nil {
		return err
	}
	target := key.Path(l.Index.Dir())

	actual, err := l.linkInto(modulesDir, s.Name, target)
	if err != nil {
		return err
	}
	l.collectBins(key.Name, actual)
	if !transitive {
		return nil
	}
	return l.linkTransitive(actual)
}

// linkInto creates modulesDir/<name> -> target, creating the modules
// directory and any @org parent on demand. An existing entry is left alone;
// the path it actually points at is what gets recorded for the peer pass.
func (l *Linker) linkInto(modulesDir, name, target string) (string, error) {
	link := filepath.Join(modulesDir, name)
	if err := fs.EnsureDir(filepath.Dir(link), 0777); err != nil {
		return "", err
	}

	actual := target
	if err := os.Symlink(target, link); err != nil {
		if !os.IsExist(err) {
			return "", errors.Wrapf(err, "cannot link %s", link)
		}
		// An earlier install may have linked a different version; accept it.
		if prev, rerr := os.Readlink(link); rerr == nil {
			actual = prev
		}
	}

	table, ok := l.depDirs[modulesDir]
	if !ok {
		table = make(map[string]string)
		l.depDirs[modulesDir] = table
	}
	table[name] = actual
	return actual, nil
}

// LinkPeers is pass C: for every package that received links, satisfy its
// declared peer dependencies out of its parent module directory's link
// table, then recurse into the package's own modules.
func (l *Linker) LinkPeers(modulesDir string) error {
	return l.linkPeersIn(modulesDir, make(map[string]bool))
}

func (l *Linker) linkPeersIn(modulesDir string, visited map[string]bool) error {
	table := l.depDirs[modulesDir]
	if len(table) == 0 {
		return nil
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pkgDir := table[name]
		canonical, err := fs.Canonical(pkgDir)
		if err != nil {
			return err
		}
		if visited[canonical] {
			continue
		}
		visited[canonical] = true

		m, err := l.Manifests.ReadPackage(pkgDir)
		if err != nil {
			l.vlogf("skipping peers of %s: %v", name, err)
			continue
		}
		childModules := filepath.Join(pkgDir, "node_modules")

		peers := make([]string, 0, len(m.PeerDependencies))
		for peer := range m.PeerDependencies {
			peers = append(peers, peer)
		}
		sort.Strings(peers)
		for _, peer := range peers {
			target, ok := table[peer]
			if !ok {
				if m.PeerDependenciesMeta[peer].Optional {
					l.vlogf("optional peer %s of %s not installed", peer, name)
				} else {
					l.vlogf("peer %s of %s not resolved by parent", peer, name)
				}
				continue
			}
			if _, err := l.linkInto(childModules, peer, target); err != nil {
				return err
			}
		}

		if err := l.linkPeersIn(childModules, visited); err != nil {
			return err
		}
	}
	return nil
}
