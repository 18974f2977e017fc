// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// defaultStoreName is the store directory created under the home directory
// when nothing overrides the location.
const defaultStoreName = ".snpm-store"

// Ctx defines the supporting context of the tool: where it runs, where the
// store lives, and how it talks to the user.
type Ctx struct {
	WorkingDir string      // where the command was invoked
	StoreDir   string      // absolute store location
	Out        *log.Logger // standard output
	Err        *log.Logger // error output
	Verbose    bool
	Quiet      bool
	Config     *Config
}

// SetPaths establishes the working directory and resolves the store
// location. Precedence for the store: the flag value, then the config file,
// then <home>/.snpm-store.
func (c *Ctx) SetPaths(wd, storeFlag string) error {
	if wd == "" {
		return errors.New("cannot set up the context with an empty working directory")
	}
	c.WorkingDir = wd

	if c.Config == nil {
		home, _ := os.UserHomeDir()
		cfg, err := LoadConfig(wd, home)
		if err != nil {
			return err
		}
		c.Config = cfg
	}

	dir := storeFlag
	if dir == "" {
		dir = c.Config.Store.Dir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "cannot locate a home directory for the store")
		}
		dir = filepath.Join(home, defaultStoreName)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "cannot absolutize store directory %s", dir)
	}
	c.StoreDir = abs
	return nil
}

// Logf prints unless quiet mode is on.
func (c *Ctx) Logf(format string, args ...interface{}) {
	if !c.Quiet && c.Out != nil {
		c.Out.Printf(format, args...)
	}
}

// VLogf prints only in verbose mode.
func (c *Ctx) VLogf(format string, args ...interface{}) {
	if c.Verbose && !c.Quiet && c.Out != nil {
		c.Out.Printf(format, args...)
	}
}

// LoadProject resolves path (the working directory when empty) into a
// Project. The directory need not contain a manifest yet; install creates
// one on demand.
func (c *Ctx) LoadProject(path string) (*Project, error) {
	if path == "" {
		path = c.WorkingDir
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot absolutize project path %s", path)
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return nil, errors.Errorf("project path %s is not a directory", abs)
	}

	p := &Project{AbsRoot: abs}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve project path %s", abs)
	}
	p.ResolvedAbsRoot = resolved
	return p, nil
}
