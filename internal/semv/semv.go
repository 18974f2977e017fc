// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package semv implements the small slice of semver algebra the installer
// needs: range satisfaction checks and maximum-satisfying selection over a
// candidate set.
package semv

import (
	"sort"

	semver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Normalize maps the surface forms that are not literal semver ranges onto
// ones that are. The empty range and the latest dist-tag both mean "anything".
func Normalize(rng string) string {
	switch rng {
	case "", "latest":
		return "*"
	}
	return rng
}

// ParseRange parses rng into a constraint set. An unparseable range is an
// error for the caller to surface; there is no recovery.
func ParseRange(rng string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(Normalize(rng))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version range %q", rng)
	}
	return c, nil
}

// Satisfies reports whether version lies within rng.
func Satisfies(version, rng string) (bool, error) {
	c, err := ParseRange(rng)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, errors.Wrapf(err, "invalid version %q", version)
	}
	return c.Check(v), nil
}

// MaxSatisfying returns the highest-precedence version among candidates that
// satisfies rng, or the empty string when none does. Candidates that do not
// parse as semver are skipped; they cannot be chosen, but their presence is
// not an error.
func MaxSatisfying(candidates []string, rng string) (string, error) {
	c, err := ParseRange(rng)
	if err != nil {
		return "", err
	}

	var best *semver.Version
	for _, cand := range candidates {
		v, err := semver.NewVersion(cand)
		if err != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return "", nil
	}
	return best.Original(), nil
}

// SortAscending orders versions by semver precedence, lowest first.
// Unparseable entries sort before everything else, in their given order.
func SortAscending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, erri := semver.NewVersion(versions[i])
		vj, errj := semver.NewVersion(versions[j])
		if erri != nil || errj != nil {
			return errj == nil
		}
		return vi.LessThan(vj)
	})
}
