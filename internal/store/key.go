// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store maintains the shared on-disk cache of package directories,
// keyed by name@version, and absorbs freshly installed packages into it.
package store

import (
	"path/filepath"
	"strings"
)

// Key identifies one store entry.
type Key struct {
	Name    string
	Version string
}

// String renders the canonical name@version form.
func (k Key) String() string {
	return k.Name + "@" + k.Version
}

// Path maps the key onto its directory under storeDir. Scoped packages keep
// their @org segment as a parent directory: <store>/@org/name@version.
func (k Key) Path(storeDir string) string {
	if i := strings.Index(k.Name, "/"); i > 0 && strings.HasPrefix(k.Name, "@") {
		return filepath.Join(storeDir, k.Name[:i], k.Name[i+1:]+"@"+k.Version)
	}
	return filepath.Join(storeDir, k.String())
}

// splitEntryName splits a terminal store directory name on its last @ into
// name and version. Names with no @, or with an empty part on either side,
// are rejected; they may be in-flight writes and are not this scanner's
// business.
func splitEntryName(entry string) (name, version string, ok bool) {
	i := strings.LastIndex(entry, "@")
	if i <= 0 || i == len(entry)-1 {
		return "", "", false
	}
	return entry[:i], entry[i+1:], true
}
