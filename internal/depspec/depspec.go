// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package depspec parses dependency specifiers as they appear on the command
// line and in manifest dependency sections.
package depspec

import (
	"strings"

	"github.com/pkg/errors"
)

// Spec is a parsed dependency specifier. Exactly one of Range, Link or Git
// carries the value; Link and Git specs must never reach the version algebra.
type Spec struct {
	Name  string
	Range string // semver range, "*" when the token carried none
	Link  string // local path from a link:/file: token
	Git   string // remote from a git: token, optionally "<url>#<ref>"
}

// IsLink reports whether the spec points at an already-built local package.
func (s Spec) IsLink() bool { return s.Link != "" }

// IsGit reports whether the spec names a git remote.
func (s Spec) IsGit() bool { return s.Git != "" }

// GitRemote splits a git spec value into its remote URL and optional ref.
func (s Spec) GitRemote() (url, ref string) {
	if i := strings.LastIndex(s.Git, "#"); i >= 0 {
		return s.Git[:i], s.Git[i+1:]
	}
	return s.Git, ""
}

// Parse interprets a single dependency token. Surface forms:
//
//	name             range defaults to *
//	name@range       split on the last @ that is not at position 0
//	@org/name@range  the leading @ belongs to the name
//	link:path        local package, transitive deps not followed
//	file:path        identical to link:
//	git:url[#ref]    remote git package
func Parse(token string) (Spec, error) {
	switch {
	case token == "":
		return Spec{}, errors.New("empty dependency specifier")
	case strings.HasPrefix(token, "link:"):
		return Spec{Link: strings.TrimPrefix(token, "link:")}, nil
	case strings.HasPrefix(token, "file:"):
		return Spec{Link: strings.TrimPrefix(token, "file:")}, nil
	case strings.HasPrefix(token, "git:"):
		return Spec{Git: strings.TrimPrefix(token, "git:")}, nil
	}

	name, rng := token, "*"
	if i := strings.LastIndex(token, "@"); i > 0 {
		name, rng = token[:i], token[i+1:]
		if rng == "" {
			rng = "*"
		}
	}
	if name == "" {
		return Spec{}, errors.Errorf("dependency specifier %q has no package name", token)
	}
	return Spec{Name: name, Range: rng}, nil
}

// ParseValue interprets a manifest dependency value for name. Manifest values
// carry no name of their own, so only the range/link/git discrimination
// applies.
func ParseValue(name, value string) Spec {
	switch {
	case strings.HasPrefix(value, "link:"):
		return Spec{Name: name, Link: strings.TrimPrefix(value, "link:")}
	case strings.HasPrefix(value, "file:"):
		return Spec{Name: name, Link: strings.TrimPrefix(value, "file:")}
	case strings.HasPrefix(value, "git:"):
		return Spec{Name: name, Git: strings.TrimPrefix(value, "git:")}
	}
	return Spec{Name: name, Range: value}
}

// Format renders a spec back into its token form. Format and Parse round-trip
// for all well-formed inputs.
func Format(s Spec) string {
	switch {
	case s.IsLink():
		return "link:" + s.Link
	case s.IsGit():
		return "git:" + s.Git
	case s.Range == "*":
		return s.Name
	}
	return s.Name + "@" + s.Range
}

// Dest says which manifest section an expanded target lands in.
type Dest int

const (
	// DestInherit follows whatever section the install invocation selected.
	DestInherit Dest = iota
	// DestDev always lands in devDependencies.
	DestDev
	// DestBoth lands in the selected section and devDependencies.
	DestBoth
)

// Target is one dependency produced by expanding a CLI token.
type Target struct {
	Spec Spec
	Dest Dest
}

// Expand parses a CLI token, applying the :ts and :dts shorthands:
//
//	name:ts   installs name plus @types/name, the latter to both targets
//	name:dts  installs name plus @types/name, the latter to devDependencies
//
// Tokens without a shorthand expand to themselves.
func Expand(token string) ([]Target, error) {
	suffix := ""
	switch {
	case strings.HasPrefix(token, "link:"), strings.HasPrefix(token, "file:"), strings.HasPrefix(token, "git:"):
		// path-ish tokens take no shorthand
	case strings.HasSuffix(token, ":ts"):
		suffix, token = "ts", strings.TrimSuffix(token, ":ts")
	case strings.HasSuffix(token, ":dts"):
		suffix, token = "dts", strings.TrimSuffix(token, ":dts")
	}

	s, err := Parse(token)
	if err != nil {
		return nil, err
	}
	targets := []Target{{Spec: s}}

	switch suffix {
	case "ts":
		targets = append(targets, Target{
			Spec: Spec{Name: TypesPackageName(s.Name), Range: "*"},
			Dest: DestBoth,
		})
	case "dts":
		targets = append(targets, Target{
			Spec: Spec{Name: TypesPackageName(s.Name), Range: "*"},
			Dest: DestDev,
		})
	}
	return targets, nil
}

// TypesPackageName maps a package name onto its DefinitelyTyped counterpart.
// Scoped names fold the org into the simple part: @org/name -> @types/org__name.
func TypesPackageName(name string) string {
	if strings.HasPrefix(name, "@") {
		if i := strings.Index(name, "/"); i > 0 {
			return "@types/" + name[1:i] + "__" + name[i+1:]
		}
	}
	return "@types/" + name
}

// IsScoped reports whether name is of the @org/name form.
func IsScoped(name string) bool {
	return strings.HasPrefix(name, "@") && strings.Contains(name, "/")
}

// SimpleName strips the @org/ prefix from a scoped name; plain names pass
// through unchanged.
func SimpleName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 && strings.HasPrefix(name, "@") {
		return name[i+1:]
	}
	return name
}
