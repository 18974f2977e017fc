// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	snpm "github.com/snpm-io/snpm"
)

const installShortHelp = `Install dependencies as store symlinks`
const installLongHelp = `
Install resolves the project's declared dependency ranges against the shared
store and the upstream registry, fetches whatever is missing, and links each
dependency (and its transitive dependencies and peers) into node_modules as a
symlink onto a store entry.

Packages named on the command line are recorded in the manifest and
installed. A package token may carry an explicit range (name@^1.2.0), a local
path (link:../pkg or file:../pkg), a git remote (git:url#ref), or the :ts /
:dts shorthands that pull in the matching @types package.
`

type installCommand struct {
	dev            bool
	prod           bool
	saveDev        bool
	saveProd       bool
	storeDir       string
	recursive      bool
	legacyPeerDeps bool
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "[spec...]" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.dev, "dev", false, "link devDependencies (the default)")
	fs.BoolVar(&cmd.prod, "prod", false, "skip devDependencies")
	fs.BoolVar(&cmd.saveDev, "D", false, "record new packages under devDependencies")
	fs.BoolVar(&cmd.saveDev, "save-dev", false, "record new packages under devDependencies")
	fs.BoolVar(&cmd.saveProd, "P", false, "record new packages under dependencies (the default)")
	fs.BoolVar(&cmd.saveProd, "save-prod", false, "record new packages under dependencies (the default)")
	fs.StringVar(&cmd.storeDir, "store-dir", "", "store location")
	fs.BoolVar(&cmd.recursive, "r", false, "install every manifest-bearing subdirectory")
	fs.BoolVar(&cmd.recursive, "recursive", false, "install every manifest-bearing subdirectory")
	fs.BoolVar(&cmd.legacyPeerDeps, "legacy-peer-deps", false, "pass the legacy peer handling flag to the bootstrap installer")
}

func (cmd *installCommand) Run(ctx *snpm.Ctx, args []string) error {
	if err := ctx.SetPaths(ctx.WorkingDir, cmd.storeDir); err != nil {
		return err
	}
	project, err := ctx.LoadProject("")
	if err != nil {
		return err
	}

	return snpm.Install(ctx, project, snpm.InstallOptions{
		Add:            args,
		SaveDev:        cmd.saveDev && !cmd.saveProd,
		Dev:            !cmd.prod || cmd.dev,
		Recursive:      cmd.recursive,
		LegacyPeerDeps: cmd.legacyPeerDeps,
	})
}
