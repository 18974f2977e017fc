// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"path/filepath"

	"github.com/snpm-io/snpm/internal/manifest"
)

// Project is a directory with a manifest and, after install, a node_modules
// tree.
type Project struct {
	// AbsRoot is the absolute path to the project root.
	AbsRoot string
	// ResolvedAbsRoot is AbsRoot with symlinks evaluated. Visited-set
	// bookkeeping uses this form so a project reached through a link is
	// still recognized.
	ResolvedAbsRoot string
}

// ManifestPath locates the project's package.json.
func (p *Project) ManifestPath() string {
	return filepath.Join(p.AbsRoot, manifest.Name)
}

// ModulesDir locates the project's node_modules directory.
func (p *Project) ModulesDir() string {
	return filepath.Join(p.AbsRoot, "node_modules")
}

// ScratchDir locates the transient bootstrap area inside node_modules.
func (p *Project) ScratchDir() string {
	return filepath.Join(p.ModulesDir(), ".tmp")
}
