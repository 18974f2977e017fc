// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const leftPadDoc = `{
  "dist-tags": {"latest": "1.3.0", "next": "2.0.0-beta.1"},
  "versions": {
    "1.1.0": {"dist": {"tarball": "https://example.com/left-pad-1.1.0.tgz"}},
    "1.3.0": {"dist": {"tarball": "https://example.com/left-pad-1.3.0.tgz"}},
    "2.0.0-beta.1": {"dist": {"tarball": "https://example.com/left-pad-2.0.0-beta.1.tgz"}}
  }
}`

func newTestServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		switch r.URL.EscapedPath() {
		case "/left-pad":
			io.WriteString(w, leftPadDoc)
		case "/@scope%2Fpkg":
			io.WriteString(w, `{"versions": {"2.1.3": {"dist": {"tarball": "https://example.com/pkg.tgz"}}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfoCoalesced(t *testing.T) {
	var hits int64
	srv := newTestServer(t, &hits)
	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)

	// Many concurrent callers of the same name must share one fetch.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Info(context.Background(), "left-pad"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("registry saw %d requests, want 1", got)
	}

	// And a later call is served from memory.
	if _, err := c.Info(context.Background(), "left-pad"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("registry saw %d requests after memoized call, want 1", got)
	}
}

func TestInfoScopedEscaping(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)

	info, err := c.Info(context.Background(), "@scope/pkg")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := info.Versions["2.1.3"]; !ok {
		t.Errorf("scoped info missing version: %+v", info)
	}
}

func TestInfoNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)

	if _, err := c.Info(context.Background(), "no-such-package"); err == nil {
		t.Fatal("expected an error for an unknown package")
	}
}

func TestResolve(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)

	cases := []struct {
		rng  string
		want string
	}{
		{"^1.1.0", "1.3.0"},
		{"latest", "1.3.0"},  // dist-tag substitution
		{"next", "2.0.0-beta.1"},
		{"*", "1.3.0"}, // prereleases are not picked by a plain star
	}
	for _, tc := range cases {
		got, err := c.Resolve(context.Background(), "left-pad", tc.rng)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tc.rng, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.rng, got, tc.want)
		}
	}

	if _, err := c.Resolve(context.Background(), "left-pad", "^9.0.0"); err == nil {
		t.Error("expected an error for an unsatisfiable range")
	}
}

func TestResolveTagWithoutDistTags(t *testing.T) {
	info := &Info{Versions: map[string]VersionInfo{"1.0.0": {}}}
	if got := resolveTag(info, "latest"); got != "*" {
		t.Errorf("latest without dist-tags resolved to %q, want *", got)
	}
	if got := resolveTag(info, "^1.0.0"); got != "^1.0.0" {
		t.Errorf("plain range was rewritten to %q", got)
	}
}

func TestTarballURL(t *testing.T) {
	info := &Info{Versions: map[string]VersionInfo{
		"1.3.0": {Dist: Dist{Tarball: "https://example.com/left-pad-1.3.0.tgz"}},
		"1.4.0": {},
	}}

	url, err := TarballURL("left-pad", info, "1.3.0")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://example.com/left-pad-1.3.0.tgz" {
		t.Errorf("TarballURL = %q", url)
	}

	// Listed but dist-less, and never-listed, both mean the version is gone.
	for _, v := range []string{"1.4.0", "9.9.9"} {
		_, err := TarballURL("left-pad", info, v)
		if _, ok := err.(*VersionGoneError); !ok {
			t.Errorf("TarballURL(%s) error = %v, want VersionGoneError", v, err)
		}
	}
}

func TestAvailableVersions(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)

	got, err := c.AvailableVersions(context.Background(), "left-pad")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1.1.0", "1.3.0", "2.0.0-beta.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AvailableVersions mismatch (-want +got):\n%s", diff)
	}
}

type dirUnpacker struct{}

func (dirUnpacker) Unpack(r io.Reader, dir string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "payload"), data, 0666)
}

func TestFetch(t *testing.T) {
	var tarballHits int64
	tarballSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tarballHits, 1)
		io.WriteString(w, "tar bytes")
	}))
	defer tarballSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"versions": {"1.0.0": {"dist": {"tarball": "`+tarballSrv.URL+`/p.tgz"}}}}`)
	}))
	defer srv.Close()

	c := NewClient(context.Background(), srv.URL, srv.Client(), nil)
	dir := t.TempDir()
	if err := c.Fetch(context.Background(), "p", "1.0.0", dir, dirUnpacker{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "payload"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tar bytes" {
		t.Errorf("unpacked payload = %q", data)
	}
	if atomic.LoadInt64(&tarballHits) != 1 {
		t.Errorf("tarball fetched %d times", tarballHits)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	if _, ok := cache.GetInfo("left-pad"); ok {
		t.Error("empty cache reported a hit")
	}

	want := &Info{
		DistTags: map[string]string{"latest": "1.3.0"},
		Versions: map[string]VersionInfo{"1.3.0": {Dist: Dist{Tarball: "https://example.com/t.tgz"}}},
	}
	if err := cache.PutInfo("left-pad", want); err != nil {
		t.Fatal(err)
	}
	got, ok := cache.GetInfo("left-pad")
	if !ok {
		t.Fatal("cache missed a fresh record")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cache round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheEpoch(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.PutInfo("pkg", &Info{}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening with a zero age puts every existing record behind the
	// epoch.
	cache, err = OpenCache(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	if _, ok := cache.GetInfo("pkg"); ok {
		t.Error("stale record served past its epoch")
	}
}
