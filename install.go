// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package snpm is the install engine: it resolves a project's declared
// dependency ranges against the shared store and the upstream registry,
// hydrates the store with whatever is missing, and materializes the
// dependency graph into node_modules as symlinks onto store entries.
package snpm

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/bootstrap"
	"github.com/snpm-io/snpm/internal/depspec"
	"github.com/snpm-io/snpm/internal/fs"
	"github.com/snpm-io/snpm/internal/linker"
	"github.com/snpm-io/snpm/internal/manifest"
	"github.com/snpm-io/snpm/internal/registry"
	"github.com/snpm-io/snpm/internal/store"
)

// registryCacheAge bounds how long persisted registry metadata stays
// authoritative.
const registryCacheAge = 24 * time.Hour

// fetchWorkers bounds concurrent direct-fetch downloads.
const fetchWorkers = 8

// InstallOptions steer one install invocation.
type InstallOptions struct {
	// Add lists CLI dependency tokens to record in the manifest and
	// install.
	Add []string
	// SaveDev records Add tokens under devDependencies.
	SaveDev bool
	// Dev links devDependencies alongside dependencies.
	Dev bool
	// Recursive installs every manifest-bearing subdirectory.
	Recursive bool
	// LegacyPeerDeps is forwarded to the bootstrap installer.
	LegacyPeerDeps bool
	// Unpacker, when set, switches store hydration from the bootstrap
	// installer to direct registry fetches driven through it.
	Unpacker registry.Unpacker
}

// Install runs the full install procedure for project: scan the store,
// reconcile the manifest with any CLI tokens, hydrate missing dependencies,
// then link the module tree, peers, and executable shims.
func Install(ctx *Ctx, project *Project, opts InstallOptions) error {
	if err := fs.EnsureDir(ctx.StoreDir, 0777); err != nil {
		return err
	}
	index := store.NewIndex(ctx.StoreDir)
	if err := index.Scan(); err != nil {
		return err
	}

	run := &installRun{
		ctx:      ctx,
		index:    index,
		lifetime: context.Background(),
	}
	defer run.close()

	if !opts.Recursive {
		return run.installProject(project, opts)
	}

	visited := make(map[string]bool)
	return godirwalk.Walk(project.AbsRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			name := de.Name()
			if path != project.AbsRoot && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, manifest.Name)); err != nil {
				return nil
			}
			canonical, err := fs.Canonical(path)
			if err != nil {
				return err
			}
			if visited[canonical] {
				return nil
			}
			visited[canonical] = true

			sub, err := ctx.LoadProject(path)
			if err != nil {
				return err
			}
			ctx.Logf("installing %s", sub.AbsRoot)
			return run.installProject(sub, opts)
		},
	})
}

// installRun carries the state shared across the projects of one invocation:
// the store index, the registry client, and its persistent cache.
type installRun struct {
	ctx      *Ctx
	index    *store.Index
	lifetime context.Context

	clientOnce sync.Once
	client     *registry.Client
	cache      *registry.Cache
}

// registryClient lazily builds the registry client; the bolt cache is
// best-effort and absent when it cannot be opened.
func (r *installRun) registryClient() *registry.Client {
	r.clientOnce.Do(func() {
		cache, err := registry.OpenCache(filepath.Join(r.ctx.StoreDir, ".cache"), registryCacheAge)
		if err != nil {
			r.ctx.VLogf("registry cache unavailable: %v", err)
		} else {
			r.cache = cache
		}
		r.client = registry.NewClient(r.lifetime, r.ctx.Config.Registry.URL, nil, cache)
		r.client.Token = r.ctx.Config.Registry.Token
	})
	return r.client
}

func (r *installRun) close() {
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			r.ctx.VLogf("%v", err)
		}
	}
}

// installProject is the single-project procedure of the orchestrator.
func (r *installRun) installProject(project *Project, opts InstallOptions) error {
	ctx := r.ctx

	doc, err := r.ensureManifest(project)
	if err != nil {
		return err
	}
	absorber := store.NewAbsorber(r.index)
	scratch := project.ScratchDir()

	if len(opts.Add) > 0 {
		if err := r.recordAdds(doc, opts, project, absorber); err != nil {
			return err
		}
		if err := doc.Write(project.ManifestPath()); err != nil {
			return err
		}
	}

	deps := mergedDeps(doc, opts.Dev)
	newDeps, err := r.missingDeps(deps)
	if err != nil {
		return err
	}
	if len(newDeps) > 0 {
		if err := fs.EnsureDir(scratch, 0777); err != nil {
			return err
		}
		if opts.Unpacker != nil {
			err = r.directFetch(newDeps, absorber, opts.Unpacker)
		} else {
			err = r.bootstrap(scratch, newDeps, absorber, opts.LegacyPeerDeps)
		}
		if err != nil {
			return err
		}
	}

	manifests := manifest.NewCache()
	l := linker.New(r.index, manifests)
	l.Out = ctx.Out
	l.Verbose = ctx.Verbose && !ctx.Quiet
	l.FetchGit = func(remote, ref string) (store.Key, error) {
		if err := fs.EnsureDir(scratch, 0777); err != nil {
			return store.Key{}, err
		}
		return absorber.AbsorbGit(remote, ref, scratch)
	}

	if err := l.LinkDeps(project.ModulesDir(), deps, true); err != nil {
		return err
	}
	if err := l.LinkPeers(project.ModulesDir()); err != nil {
		return err
	}
	if err := l.InstallBins(project.ModulesDir()); err != nil {
		return err
	}

	// The scratch area is only diagnostic once everything above went
	// through.
	if err := os.RemoveAll(scratch); err != nil {
		ctx.VLogf("could not clean scratch directory %s: %v", scratch, err)
	}
	return nil
}

// ensureManifest loads the project manifest, creating an empty one first
// when the project has none.
func (r *installRun) ensureManifest(project *Project) (*manifest.Doc, error) {
	path := project.ManifestPath()
	doc, err := manifest.LoadDoc(path)
	if err == nil {
		return doc, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	doc = manifest.NewDoc()
	if err := doc.Write(path); err != nil {
		return nil, err
	}
	return doc, nil
}

// recordAdds expands CLI tokens and records each target in the manifest. A
// token with no explicit range records a caret on the version that will be
// linked: the best cached one, else the best the registry offers. Link and
// git tokens carry no name of their own, so their manifests supply it; for
// git that means absorbing the clone right here.
func (r *installRun) recordAdds(doc *manifest.Doc, opts InstallOptions, project *Project, absorber *store.Absorber) error {
	section := manifest.SectionDependencies
	if opts.SaveDev {
		section = manifest.SectionDevDependencies
	}

	for _, token := range opts.Add {
		targets, err := depspec.Expand(token)
		if err != nil {
			return err
		}
		for _, t := range targets {
			name, value, err := r.addedValue(t.Spec, project, absorber)
			if err != nil {
				return err
			}
			switch t.Dest {
			case depspec.DestDev:
				doc.Set(manifest.SectionDevDependencies, name, value)
			case depspec.DestBoth:
				doc.Set(section, name, value)
				doc.Set(manifest.SectionDevDependencies, name, value)
			default:
				doc.Set(section, name, value)
			}
		}
	}
	return nil
}

func (r *installRun) addedValue(s depspec.Spec, project *Project, absorber *store.Absorber) (name, value string, err error) {
	switch {
	case s.IsLink():
		target := s.Link
		if !filepath.IsAbs(target) {
			target = filepath.Join(project.AbsRoot, target)
		}
		m, err := manifest.ReadPackage(target)
		if err != nil {
			return "", "", err
		}
		return m.Name, "link:" + s.Link, nil
	case s.IsGit():
		if err := fs.EnsureDir(project.ScratchDir(), 0777); err != nil {
			return "", "", err
		}
		remote, ref := s.GitRemote()
		key, err := absorber.AbsorbGit(remote, ref, project.ScratchDir())
		if err != nil {
			return "", "", err
		}
		return key.Name, "git:" + s.Git, nil
	case s.Range != "*":
		return s.Name, s.Range, nil
	}

	// No explicit range: pin a caret on the version that will serve.
	if v, err := r.index.MaxSatisfying(s.Name, "*"); err != nil {
		return "", "", err
	} else if v != "" {
		return s.Name, "^" + v, nil
	}
	versions, err := r.registryClient().AvailableVersions(r.lifetime, s.Name)
	if err != nil {
		return "", "", err
	}
	if len(versions) == 0 {
		return "", "", errors.Errorf("registry lists no versions for %s", s.Name)
	}
	return s.Name, "^" + versions[len(versions)-1], nil
}

// mergedDeps combines the manifest sections that this install links at top
// level. The dependencies section wins a name collision.
func mergedDeps(doc *manifest.Doc, dev bool) map[string]string {
	deps := make(map[string]string)
	if dev {
		for name, value := range doc.Section(manifest.SectionDevDependencies) {
			deps[name] = value
		}
	}
	for name, value := range doc.Section(manifest.SectionDependencies) {
		deps[name] = value
	}
	return deps
}

// missingDeps selects the range-valued dependencies with no satisfying store
// entry. Link and git values never go through the registry.
func (r *installRun) missingDeps(deps map[string]string) ([]bootstrap.Request, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []bootstrap.Request
	for _, name := range names {
		s := depspec.ParseValue(name, deps[name])
		if s.IsLink() || s.IsGit() {
			continue
		}
		v, err := r.index.MaxSatisfying(s.Name, s.Range)
		if err != nil {
			return nil, err
		}
		if v == "" {
			missing = append(missing, bootstrap.Request{Name: s.Name, Range: s.Range})
		}
	}
	return missing, nil
}

// bootstrap hydrates the store through the external installer and absorbs
// its scratch output.
func (r *installRun) bootstrap(scratch string, deps []bootstrap.Request, absorber *store.Absorber, legacyPeerDeps bool) error {
	installer := bootstrap.Default()
	if cmd := r.ctx.Config.Bootstrap.Command; cmd != "" {
		installer.Command = cmd
		installer.Args = r.ctx.Config.Bootstrap.Args
	}

	r.ctx.Logf("fetching %d packages via %s", len(deps), installer.Command)
	if err := installer.Run(r.lifetime, scratch, deps, legacyPeerDeps); err != nil {
		return err
	}

	keys, err := absorber.Absorb(filepath.Join(scratch, "node_modules"))
	if err != nil {
		return err
	}
	r.ctx.VLogf("absorbed %d packages into the store", len(keys))
	return nil
}

// directFetch hydrates the store straight from the registry: resolve each
// request, download and unpack its tarball into a staging directory, land it
// in the store, then chase the package's own dependencies the same way.
// Workers run concurrently; their failures are all surfaced.
func (r *installRun) directFetch(reqs []bootstrap.Request, absorber *store.Absorber, unpacker registry.Unpacker) error {
	client := r.registryClient()

	var (
		mu   sync.Mutex
		errs []error
		seen = make(map[string]bool)
		wg   sync.WaitGroup
		sem  = make(chan struct{}, fetchWorkers)
	)

	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var enqueue func(name, rng string)
	fetchOne := func(name, rng string) {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()

		version, err := client.Resolve(r.lifetime, name, rng)
		if err != nil {
			fail(err)
			return
		}
		key := store.Key{Name: name, Version: version}
		if !r.index.Has(key.Name, key.Version) {
			staging, err := os.MkdirTemp(r.ctx.StoreDir, ".fetch-")
			if err != nil {
				fail(errors.Wrap(err, "cannot create staging directory"))
				return
			}
			if err := client.Fetch(r.lifetime, name, version, staging, unpacker); err != nil {
				os.RemoveAll(staging)
				fail(err)
				return
			}
			if err := absorber.Place(key, staging); err != nil {
				fail(err)
				return
			}
		}

		m, err := manifest.ReadPackage(key.Path(r.ctx.StoreDir))
		if err != nil {
			fail(err)
			return
		}
		for dep, value := range m.Dependencies {
			s := depspec.ParseValue(dep, value)
			if s.IsLink() || s.IsGit() {
				continue
			}
			enqueue(s.Name, s.Range)
		}
	}
	enqueue = func(name, rng string) {
		mu.Lock()
		key := name + "@" + rng
		if seen[key] {
			mu.Unlock()
			return
		}
		seen[key] = true
		mu.Unlock()

		wg.Add(1)
		go fetchOne(name, rng)
	}

	for _, req := range reqs {
		enqueue(req.Name, req.Range)
	}
	wg.Wait()
	return collect(errs)
}
