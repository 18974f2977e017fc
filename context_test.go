// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"path/filepath"
	"testing"

	"github.com/snpm-io/snpm/internal/test"
)

func TestSetPathsFlagBeatsConfig(t *testing.T) {
	h := test.NewHelper(t)
	ctx := &Ctx{Config: &Config{Store: StoreConfig{Dir: h.Path("config-store")}}}

	if err := ctx.SetPaths(h.TempDir("wd"), h.Path("flag-store")); err != nil {
		t.Fatal(err)
	}
	if ctx.StoreDir != h.Path("flag-store") {
		t.Errorf("StoreDir = %q, want the flag value", ctx.StoreDir)
	}
}

func TestSetPathsConfigBeatsDefault(t *testing.T) {
	h := test.NewHelper(t)
	ctx := &Ctx{Config: &Config{Store: StoreConfig{Dir: h.Path("config-store")}}}

	if err := ctx.SetPaths(h.TempDir("wd"), ""); err != nil {
		t.Fatal(err)
	}
	if ctx.StoreDir != h.Path("config-store") {
		t.Errorf("StoreDir = %q, want the config value", ctx.StoreDir)
	}
}

func TestSetPathsDefault(t *testing.T) {
	h := test.NewHelper(t)
	t.Setenv("HOME", h.TempDir("home"))
	ctx := &Ctx{Config: &Config{}}

	if err := ctx.SetPaths(h.TempDir("wd"), ""); err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(h.Path("home"), defaultStoreName); ctx.StoreDir != want {
		t.Errorf("StoreDir = %q, want %q", ctx.StoreDir, want)
	}
}

func TestSetPathsEmptyWorkingDir(t *testing.T) {
	ctx := &Ctx{Config: &Config{}}
	if err := ctx.SetPaths("", ""); err == nil {
		t.Fatal("expected an error for an empty working directory")
	}
}

func TestLoadProject(t *testing.T) {
	h := test.NewHelper(t)
	ctx := &Ctx{WorkingDir: h.TempDir("proj"), Config: &Config{}}

	p, err := ctx.LoadProject("")
	if err != nil {
		t.Fatal(err)
	}
	if p.AbsRoot != h.Path("proj") {
		t.Errorf("AbsRoot = %q", p.AbsRoot)
	}
	if p.ModulesDir() != filepath.Join(p.AbsRoot, "node_modules") {
		t.Errorf("ModulesDir = %q", p.ModulesDir())
	}

	if _, err := ctx.LoadProject(h.Path("missing")); err == nil {
		t.Error("expected an error for a missing project directory")
	}
}
