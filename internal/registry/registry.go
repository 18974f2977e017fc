// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry talks to the upstream package registry: version listings,
// dist-tags, and tarball locations. Metadata fetches are memoized per name,
// and concurrent requests for the same name share one in-flight fetch.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/snpm-io/snpm/internal/semv"
)

// DefaultURL is the upstream registry used when no configuration overrides it.
const DefaultURL = "https://registry.npmjs.org"

// Info is the registry's per-package document, reduced to the fields the
// installer consumes.
type Info struct {
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]VersionInfo `json:"versions"`
}

// VersionInfo describes one published version.
type VersionInfo struct {
	Dist Dist `json:"dist"`
}

// Dist locates a version's tarball.
type Dist struct {
	Tarball string `json:"tarball"`
}

// Unpacker extracts a gzipped tar stream into a directory. The concrete
// decompressor is an external collaborator; the engine only drives it.
type Unpacker interface {
	Unpack(r io.Reader, dir string) error
}

// VersionGoneError reports a version that was listed but has no dist record;
// it dropped from the registry after being observed.
type VersionGoneError struct {
	Name    string
	Version string
}

func (e *VersionGoneError) Error() string {
	return "version " + e.Version + " of " + e.Name + " is gone from the registry"
}

type infoReturnChans struct {
	ret chan *Info
	err chan error
}

func (rc infoReturnChans) awaitReturn() (info *Info, err error) {
	select {
	case info = <-rc.ret:
	case err = <-rc.err:
	}
	return
}

// Client fetches and memoizes registry metadata.
type Client struct {
	// Token, when non-empty, is sent as a bearer credential on every
	// registry request. Set it before the first use of the client.
	Token string

	base     string
	hc       *http.Client
	cache    *Cache          // optional persistent cache
	lifetime context.Context // bounds all fetches

	mu    sync.Mutex // guards infos
	infos map[string]*Info

	pmu        sync.Mutex // guards protoInfos
	protoInfos map[string][]infoReturnChans

	rmu      sync.Mutex // guards resolved
	resolved map[string]string
}

// NewClient returns a client against baseURL. A nil hc uses
// http.DefaultClient; a nil cache disables persistence. lifetime bounds every
// fetch regardless of the individual caller contexts.
func NewClient(lifetime context.Context, baseURL string, hc *http.Client, cache *Cache) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base:       strings.TrimSuffix(baseURL, "/"),
		hc:         hc,
		cache:      cache,
		lifetime:   lifetime,
		infos:      make(map[string]*Info),
		protoInfos: make(map[string][]infoReturnChans),
		resolved:   make(map[string]string),
	}
}

// Info returns the registry document for name. At most one fetch per name is
// ever in flight; concurrent callers share its result.
func (c *Client) Info(ctx context.Context, name string) (*Info, error) {
	c.mu.Lock()
	if info, ok := c.infos[name]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	rc := infoReturnChans{
		ret: make(chan *Info, 1),
		err: make(chan error, 1),
	}
	c.pmu.Lock()
	if chans, has := c.protoInfos[name]; has {
		// Another goroutine is already fetching; fold in with it.
		c.protoInfos[name] = append(chans, rc)
		c.pmu.Unlock()
		return rc.awaitReturn()
	}
	c.protoInfos[name] = []infoReturnChans{rc}
	c.pmu.Unlock()

	go func() {
		cctx, cancel := constext.Cons(ctx, c.lifetime)
		defer cancel()

		info, err := c.fetchInfo(cctx, name)
		if err == nil {
			c.mu.Lock()
			c.infos[name] = info
			c.mu.Unlock()
		}

		c.pmu.Lock()
		chans := c.protoInfos[name]
		delete(c.protoInfos, name)
		c.pmu.Unlock()

		for _, rc := range chans {
			if err != nil {
				rc.err <- err
			} else {
				rc.ret <- info
			}
		}
	}()

	return rc.awaitReturn()
}

func (c *Client) fetchInfo(ctx context.Context, name string) (*Info, error) {
	if c.cache != nil {
		if info, ok := c.cache.GetInfo(name); ok {
			return info, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+escapeName(name), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build registry request for %s", name)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "registry request for %s failed", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("registry returned %s for %s", resp.Status, name)
	}
	info := &Info{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, errors.Wrapf(err, "cannot decode registry document for %s", name)
	}

	if c.cache != nil {
		// Persistence is advisory; a failed put is just a future miss.
		_ = c.cache.PutInfo(name, info)
	}
	return info, nil
}

// escapeName encodes a package name into its registry path segment. Scoped
// names keep their @ but encode the separating slash.
func escapeName(name string) string {
	return strings.Replace(url.PathEscape(name), "%40", "@", 1)
}

// resolveTag substitutes a dist-tag for its pinned version. When the
// registry does not list latest, latest falls back to matching anything; any
// other unlisted name is returned unchanged and parsed as a range.
func resolveTag(info *Info, rng string) string {
	if v, ok := info.DistTags[rng]; ok {
		return v
	}
	if rng == "latest" {
		return "*"
	}
	return rng
}

// Resolve picks the highest published version of name satisfying rng.
// Results are memoized per name@range.
func (c *Client) Resolve(ctx context.Context, name, rng string) (string, error) {
	key := name + "@" + rng
	c.rmu.Lock()
	if v, ok := c.resolved[key]; ok {
		c.rmu.Unlock()
		return v, nil
	}
	c.rmu.Unlock()

	info, err := c.Info(ctx, name)
	if err != nil {
		return "", err
	}
	candidates := make([]string, 0, len(info.Versions))
	for v := range info.Versions {
		candidates = append(candidates, v)
	}
	version, err := semv.MaxSatisfying(candidates, resolveTag(info, rng))
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", errors.Errorf("no published version of %s satisfies %q", name, rng)
	}

	c.rmu.Lock()
	c.resolved[key] = version
	c.rmu.Unlock()
	return version, nil
}

// TarballURL locates the tarball for an exact version of name.
func TarballURL(name string, info *Info, version string) (string, error) {
	vi, ok := info.Versions[version]
	if !ok || vi.Dist.Tarball == "" {
		return "", &VersionGoneError{Name: name, Version: version}
	}
	return vi.Dist.Tarball, nil
}

// AvailableVersions lists the published versions of the package a token
// names, sorted ascending by precedence.
func (c *Client) AvailableVersions(ctx context.Context, name string) ([]string, error) {
	info, err := c.Info(ctx, name)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(info.Versions))
	for v := range info.Versions {
		versions = append(versions, v)
	}
	semv.SortAscending(versions)
	return versions, nil
}

// Fetch downloads the tarball for name@version and unpacks it into dir.
func (c *Client) Fetch(ctx context.Context, name, version, dir string, u Unpacker) error {
	info, err := c.Info(ctx, name)
	if err != nil {
		return err
	}
	tarball, err := TarballURL(name, info, version)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarball, nil)
	if err != nil {
		return errors.Wrapf(err, "cannot build tarball request for %s@%s", name, version)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "tarball request for %s@%s failed", name, version)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("registry returned %s for %s@%s tarball", resp.Status, name, version)
	}
	return errors.Wrapf(u.Unpack(resp.Body, dir), "cannot unpack %s@%s", name, version)
}
