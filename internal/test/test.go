// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test provides the shared fixture helper for the installer's tests.
package test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Helper with utilities for testing.
type Helper struct {
	t       *testing.T
	tempdir string
}

// NewHelper initializes a new helper for testing, rooted in a fresh temp
// directory that is removed when the test ends.
func NewHelper(t *testing.T) *Helper {
	t.Helper()
	return &Helper{t: t, tempdir: t.TempDir()}
}

// Must gives a fatal error if err is not nil.
func (h *Helper) Must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("%+v", err)
	}
}

// Path returns the absolute path of a name relative to the temp root.
func (h *Helper) Path(name string) string {
	return filepath.Join(h.tempdir, filepath.FromSlash(name))
}

// TempDir creates a directory (and parents) under the temp root.
func (h *Helper) TempDir(path string) string {
	h.t.Helper()
	full := h.Path(path)
	h.Must(os.MkdirAll(full, 0777))
	return full
}

// TempFile writes a file under the temp root, creating parents as needed.
func (h *Helper) TempFile(path, contents string) string {
	h.t.Helper()
	full := h.Path(path)
	h.Must(os.MkdirAll(filepath.Dir(full), 0777))
	h.Must(os.WriteFile(full, []byte(contents), 0666))
	return full
}

// TempManifest writes a package.json built from fields under dir.
func (h *Helper) TempManifest(dir string, fields map[string]interface{}) string {
	h.t.Helper()
	data, err := json.MarshalIndent(fields, "", "  ")
	h.Must(err)
	return h.TempFile(filepath.Join(dir, "package.json"), string(data)+"\n")
}

// TempSymlink creates a symlink under the temp root pointing at target.
func (h *Helper) TempSymlink(target, link string) {
	h.t.Helper()
	full := h.Path(link)
	h.Must(os.MkdirAll(filepath.Dir(full), 0777))
	h.Must(os.Symlink(target, full))
}

// ReadFile returns the contents of a file under the temp root.
func (h *Helper) ReadFile(path string) string {
	h.t.Helper()
	data, err := os.ReadFile(h.Path(path))
	h.Must(err)
	return string(data)
}

// Exists reports whether a path under the temp root exists.
func (h *Helper) Exists(path string) bool {
	_, err := os.Lstat(h.Path(path))
	return err == nil
}

// Readlink returns the target of a symlink under the temp root.
func (h *Helper) Readlink(path string) string {
	h.t.Helper()
	target, err := os.Readlink(h.Path(path))
	h.Must(err)
	return target
}

// StoreEntry builds a minimal store entry for name@version under storeRel (a
// path relative to the temp root), returning its absolute directory.
func (h *Helper) StoreEntry(storeRel, name, version string, extra map[string]interface{}) string {
	h.t.Helper()
	entry := name + "@" + version
	if strings.HasPrefix(name, "@") {
		if i := strings.Index(name, "/"); i > 0 {
			entry = filepath.Join(name[:i], name[i+1:]+"@"+version)
		}
	}
	rel := filepath.Join(storeRel, entry)
	fields := map[string]interface{}{"name": name, "version": version}
	for k, v := range extra {
		fields[k] = v
	}
	h.TempManifest(rel, fields)
	return h.Path(rel)
}
