// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ConfigName is the optional configuration file consulted in the project
// root and then the home directory.
const ConfigName = "snpm.toml"

// Config carries the tool's file-based configuration. CLI flags override it;
// it overrides built-in defaults.
type Config struct {
	Registry  RegistryConfig
	Store     StoreConfig
	Bootstrap BootstrapConfig
}

// RegistryConfig selects the upstream registry.
type RegistryConfig struct {
	URL   string
	Token string
}

// StoreConfig overrides the store location.
type StoreConfig struct {
	Dir string
}

// BootstrapConfig overrides the external installer invocation.
type BootstrapConfig struct {
	Command string
	Args    []string
}

type rawConfig struct {
	Registry  rawRegistry  `toml:"registry"`
	Store     rawStore     `toml:"store"`
	Bootstrap rawBootstrap `toml:"bootstrap"`
}

type rawRegistry struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

type rawStore struct {
	Dir string `toml:"dir"`
}

type rawBootstrap struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// readConfig returns a Config read from r.
func readConfig(r io.Reader) (*Config, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "unable to read byte stream")
	}
	raw := rawConfig{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, errors.Wrap(err, "unable to parse the config as TOML")
	}
	return &Config{
		Registry:  RegistryConfig{URL: raw.Registry.URL, Token: raw.Registry.Token},
		Store:     StoreConfig{Dir: raw.Store.Dir},
		Bootstrap: BootstrapConfig{Command: raw.Bootstrap.Command, Args: raw.Bootstrap.Args},
	}, nil
}

// LoadConfig finds and parses the first snpm.toml among dirs. When none
// exists, the zero config is returned.
func LoadConfig(dirs ...string) (*Config, error) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, ConfigName)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "cannot open %s", path)
		}
		defer f.Close()
		cfg, err := readConfig(f)
		return cfg, errors.Wrapf(err, "cannot load %s", path)
	}
	return &Config{}, nil
}
