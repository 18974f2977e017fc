// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/manifest"
)

// Uninstall removes each named dependency from the project: the
// node_modules entry goes away and the name is dropped from both manifest
// sections. The store is never touched.
func Uninstall(ctx *Ctx, project *Project, names []string) error {
	doc, err := manifest.LoadDoc(project.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("no %s found in %s", manifest.Name, project.AbsRoot)
		}
		return err
	}

	for _, name := range names {
		entry := filepath.Join(project.ModulesDir(), name)
		if err := os.RemoveAll(entry); err != nil {
			return errors.Wrapf(err, "cannot remove %s", entry)
		}
		if doc.Remove(name) {
			ctx.VLogf("removed %s from the manifest", name)
		} else {
			ctx.Logf("%s was not a declared dependency", name)
		}
	}

	return doc.Write(project.ManifestPath())
}
