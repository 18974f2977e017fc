// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"

	snpm "github.com/snpm-io/snpm"
)

const versionShortHelp = `Display version`
const versionLongHelp = `
Display version of this application.
`

// Version is the tool version reported by the version command and on errors.
const Version = "v0.1.0"

type versionCommand struct{}

func (cmd *versionCommand) Name() string      { return "version" }
func (cmd *versionCommand) Args() string      { return "" }
func (cmd *versionCommand) ShortHelp() string { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string  { return versionLongHelp }
func (cmd *versionCommand) Hidden() bool      { return false }

func (cmd *versionCommand) Register(fs *flag.FlagSet) {}

func (cmd *versionCommand) Run(ctx *snpm.Ctx, args []string) error {
	fmt.Fprintf(ctx.Out.Writer(), "snpm %s\n", Version)
	return nil
}
