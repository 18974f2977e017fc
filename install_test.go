// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/snpm-io/snpm/internal/test"
)

func testCtx(h *test.Helper) *Ctx {
	discard := log.New(io.Discard, "", 0)
	return &Ctx{
		WorkingDir: h.Path("project"),
		StoreDir:   h.Path("store"),
		Out:        discard,
		Err:        discard,
		Config:     &Config{},
	}
}

func testProject(h *test.Helper, ctx *Ctx) *Project {
	h.TempDir("project")
	p, err := ctx.LoadProject("")
	h.Must(err)
	return p
}

func TestInstallFromStore(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	// The store already satisfies the range; no registry involvement.
	entry := h.StoreEntry("store", "@scope/pkg", "2.1.3", nil)
	h.StoreEntry("store", "@scope/pkg", "2.2.0", nil)
	h.TempManifest("project", map[string]interface{}{
		"dependencies": map[string]interface{}{"@scope/pkg": "~2.1.0"},
	})
	project := testProject(h, ctx)

	if err := Install(ctx, project, InstallOptions{Dev: true}); err != nil {
		t.Fatal(err)
	}
	if got := h.Readlink("project/node_modules/@scope/pkg"); got != entry {
		t.Errorf("link points at %q, want %q", got, entry)
	}
}

func TestInstallIdempotent(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "left-pad", "1.3.0", nil)
	h.TempManifest("project", map[string]interface{}{
		"dependencies": map[string]interface{}{"left-pad": "^1.3.0"},
	})
	project := testProject(h, ctx)

	if err := Install(ctx, project, InstallOptions{Dev: true}); err != nil {
		t.Fatal(err)
	}
	manifestAfterFirst := h.ReadFile("project/package.json")
	linkAfterFirst := h.Readlink("project/node_modules/left-pad")

	if err := Install(ctx, project, InstallOptions{Dev: true}); err != nil {
		t.Fatal(err)
	}
	if got := h.ReadFile("project/package.json"); got != manifestAfterFirst {
		t.Errorf("second install changed the manifest:\n%s\nvs\n%s", manifestAfterFirst, got)
	}
	if got := h.Readlink("project/node_modules/left-pad"); got != linkAfterFirst {
		t.Errorf("second install changed the link: %q vs %q", linkAfterFirst, got)
	}
}

func TestInstallCreatesManifest(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)
	project := testProject(h, ctx)

	if err := Install(ctx, project, InstallOptions{Dev: true}); err != nil {
		t.Fatal(err)
	}
	if !h.Exists("project/package.json") {
		t.Error("install did not create a manifest")
	}
}

func TestInstallAddRecordsRange(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "left-pad", "1.3.0", nil)
	project := testProject(h, ctx)

	opts := InstallOptions{Add: []string{"left-pad@^1.3.0"}, Dev: true}
	if err := Install(ctx, project, opts); err != nil {
		t.Fatal(err)
	}

	m := h.ReadFile("project/package.json")
	if want := `"left-pad": "^1.3.0"`; !contains(m, want) {
		t.Errorf("manifest missing %s:\n%s", want, m)
	}
	if !h.Exists("project/node_modules/left-pad") {
		t.Error("added dependency not linked")
	}
}

func TestInstallAddCaretsOnCachedVersion(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "left-pad", "1.3.0", nil)
	project := testProject(h, ctx)

	// No explicit range: the cached version gets a caret, no registry call.
	if err := Install(ctx, project, InstallOptions{Add: []string{"left-pad"}, Dev: true}); err != nil {
		t.Fatal(err)
	}
	if m := h.ReadFile("project/package.json"); !contains(m, `"left-pad": "^1.3.0"`) {
		t.Errorf("manifest did not pin a caret on the cached version:\n%s", m)
	}
}

func TestInstallAddSaveDev(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "tap", "16.0.0", nil)
	project := testProject(h, ctx)

	opts := InstallOptions{Add: []string{"tap@^16.0.0"}, SaveDev: true, Dev: true}
	if err := Install(ctx, project, opts); err != nil {
		t.Fatal(err)
	}
	m := h.ReadFile("project/package.json")
	if !contains(m, `"devDependencies"`) || !contains(m, `"tap": "^16.0.0"`) {
		t.Errorf("dev dependency not recorded:\n%s", m)
	}
}

func TestInstallLinkSpec(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.TempManifest("local-pkg", map[string]interface{}{"name": "local-pkg", "version": "0.0.1"})
	project := testProject(h, ctx)

	opts := InstallOptions{Add: []string{"link:" + h.Path("local-pkg")}, Dev: true}
	if err := Install(ctx, project, opts); err != nil {
		t.Fatal(err)
	}
	if got := h.Readlink("project/node_modules/local-pkg"); got != h.Path("local-pkg") {
		t.Errorf("link spec resolved to %q", got)
	}
}

func TestInstallProdSkipsDevDeps(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "left-pad", "1.3.0", nil)
	h.StoreEntry("store", "tap", "16.0.0", nil)
	h.TempManifest("project", map[string]interface{}{
		"dependencies":    map[string]interface{}{"left-pad": "^1.3.0"},
		"devDependencies": map[string]interface{}{"tap": "^16.0.0"},
	})
	project := testProject(h, ctx)

	if err := Install(ctx, project, InstallOptions{Dev: false}); err != nil {
		t.Fatal(err)
	}
	if !h.Exists("project/node_modules/left-pad") {
		t.Error("runtime dependency not linked")
	}
	if h.Exists("project/node_modules/tap") {
		t.Error("dev dependency linked in prod mode")
	}
}

func TestInstallRecursive(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	h.StoreEntry("store", "left-pad", "1.3.0", nil)
	h.TempManifest("project", map[string]interface{}{
		"dependencies": map[string]interface{}{"left-pad": "^1.3.0"},
	})
	h.TempManifest("project/packages/web", map[string]interface{}{
		"dependencies": map[string]interface{}{"left-pad": "^1.3.0"},
	})
	// A manifest inside node_modules is somebody's package, not a project.
	h.TempManifest("project/node_modules/planted", map[string]interface{}{
		"dependencies": map[string]interface{}{"ghost": "^1.0.0"},
	})
	project := testProject(h, ctx)

	if err := Install(ctx, project, InstallOptions{Recursive: true, Dev: true}); err != nil {
		t.Fatal(err)
	}
	if !h.Exists("project/node_modules/left-pad") {
		t.Error("root project not installed")
	}
	if !h.Exists("project/packages/web/node_modules/left-pad") {
		t.Error("subproject not installed")
	}
	if h.Exists("project/node_modules/planted/node_modules") {
		t.Error("recursive walk descended into node_modules")
	}
}

func TestUninstall(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)

	entry := h.StoreEntry("store", "tar", "6.1.0", nil)
	h.TempManifest("project", map[string]interface{}{
		"dependencies":    map[string]interface{}{"tar": "^6.0.0", "keep": "*"},
		"devDependencies": map[string]interface{}{"tar": "^6.0.0"},
	})
	h.TempDir("project/node_modules")
	h.TempSymlink(entry, "project/node_modules/tar")
	project := testProject(h, ctx)

	if err := Uninstall(ctx, project, []string{"tar"}); err != nil {
		t.Fatal(err)
	}

	m := h.ReadFile("project/package.json")
	if contains(m, `"tar"`) {
		t.Errorf("tar still in the manifest:\n%s", m)
	}
	if !contains(m, `"keep"`) {
		t.Errorf("unrelated dependency lost:\n%s", m)
	}
	if h.Exists("project/node_modules/tar") {
		t.Error("node_modules entry not removed")
	}
	if !h.Exists("store/tar@6.1.0/package.json") {
		t.Error("uninstall touched the store")
	}
}

func TestUninstallWithoutManifest(t *testing.T) {
	h := test.NewHelper(t)
	ctx := testCtx(h)
	project := testProject(h, ctx)

	if err := Uninstall(ctx, project, []string{"tar"}); err == nil {
		t.Fatal("expected an error for a project without a manifest")
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
