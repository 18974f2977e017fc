// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/pkg/errors"

	snpm "github.com/snpm-io/snpm"
)

const uninstallShortHelp = `Remove dependencies from the project`
const uninstallLongHelp = `
Uninstall removes each named package from node_modules and drops it from the
manifest's dependencies and devDependencies sections. The shared store is
never modified; other projects keep their links.
`

type uninstallCommand struct {
	storeDir string
}

func (cmd *uninstallCommand) Name() string      { return "uninstall" }
func (cmd *uninstallCommand) Args() string      { return "<name> [name...]" }
func (cmd *uninstallCommand) ShortHelp() string { return uninstallShortHelp }
func (cmd *uninstallCommand) LongHelp() string  { return uninstallLongHelp }
func (cmd *uninstallCommand) Hidden() bool      { return false }

func (cmd *uninstallCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.storeDir, "store-dir", "", "store location")
}

func (cmd *uninstallCommand) Run(ctx *snpm.Ctx, args []string) error {
	if len(args) == 0 {
		return errors.New("uninstall needs at least one package name")
	}
	if err := ctx.SetPaths(ctx.WorkingDir, cmd.storeDir); err != nil {
		return err
	}
	project, err := ctx.LoadProject("")
	if err != nil {
		return err
	}
	return snpm.Uninstall(ctx, project, args)
}
