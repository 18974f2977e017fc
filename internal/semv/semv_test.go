// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package semv

import "testing"

func TestSatisfies(t *testing.T) {
	cases := []struct {
		version string
		rng     string
		want    bool
	}{
		{"1.3.0", "^1.3.0", true},
		{"1.9.9", "^1.3.0", true},
		{"2.0.0", "^1.3.0", false},
		{"1.2.9", "^1.3.0", false},
		{"2.1.3", "~2.1.0", true},
		{"2.2.0", "~2.1.0", false},
		{"1.4.7", "1.x", true},
		{"2.0.0", "1.x", false},
		{"1.4.7", "1", true},
		{"0.2.5", "^0.2.3", true},
		{"0.3.0", "^0.2.3", false},
		{"1.5.0", ">=1.2.0 <2.0.0", true},
		{"2.0.0", ">=1.2.0 <2.0.0", false},
		{"0.0.1", "*", true},
		{"99.99.99", "*", true},
		{"3.1.4", "", true},
		{"3.1.4", "latest", true},
		{"1.2.3", "1.2.3", true},
		{"1.2.4", "1.2.3", false},
		{"2.0.0-beta.1", "^1.0.0", false},
	}
	for _, c := range cases {
		got, err := Satisfies(c.version, c.rng)
		if err != nil {
			t.Errorf("Satisfies(%q, %q): unexpected error %v", c.version, c.rng, err)
			continue
		}
		if got != c.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", c.version, c.rng, got, c.want)
		}
	}
}

func TestSatisfiesBadRange(t *testing.T) {
	if _, err := Satisfies("1.0.0", "not a range"); err == nil {
		t.Error("expected an error for an unparseable range")
	}
}

func TestMaxSatisfying(t *testing.T) {
	cases := []struct {
		candidates []string
		rng        string
		want       string
	}{
		{[]string{"1.3.0", "1.4.2", "2.0.0"}, "^1.3.0", "1.4.2"},
		{[]string{"2.1.3", "2.2.0"}, "~2.1.0", "2.1.3"},
		{[]string{"1.0.0", "1.1.0"}, "^2.0.0", ""},
		{[]string{}, "*", ""},
		{[]string{"0.9.0", "1.0.0", "1.0.1"}, "*", "1.0.1"},
		{[]string{"1.0.0", "not-semver", "1.2.0"}, "^1.0.0", "1.2.0"},
		{[]string{"1.0.0", "1.1.0-rc.1"}, "^1.0.0", "1.0.0"},
	}
	for _, c := range cases {
		got, err := MaxSatisfying(c.candidates, c.rng)
		if err != nil {
			t.Errorf("MaxSatisfying(%v, %q): unexpected error %v", c.candidates, c.rng, err)
			continue
		}
		if got != c.want {
			t.Errorf("MaxSatisfying(%v, %q) = %q, want %q", c.candidates, c.rng, got, c.want)
		}
	}
}

func TestMaxSatisfyingBadRange(t *testing.T) {
	if _, err := MaxSatisfying([]string{"1.0.0"}, ">>nope"); err == nil {
		t.Error("expected an error for an unparseable range")
	}
}

func TestSortAscending(t *testing.T) {
	versions := []string{"2.0.0", "1.10.0", "1.2.0", "1.2.0-alpha"}
	SortAscending(versions)
	want := []string{"1.2.0-alpha", "1.2.0", "1.10.0", "2.0.0"}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("SortAscending = %v, want %v", versions, want)
		}
	}
}
