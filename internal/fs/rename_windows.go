// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package fs

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// renameFallback attempts to determine if the rename failed due to src and
// dst being on different devices, falling back to a copy in that case.
// Windows reports ERROR_NOT_SAME_DEVICE, and sometimes ERROR_ACCESS_DENIED
// for directories, where unix systems report EXDEV.
func renameFallback(err error, src, dst string) error {
	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	expectedErrs := []error{syscall.ERROR_NOT_SAME_DEVICE, syscall.ERROR_ACCESS_DENIED}
	matched := false
	for _, e := range expectedErrs {
		if terr.Err == e {
			matched = true
			break
		}
	}
	if !matched {
		return errors.Wrapf(terr, "link error: cannot rename %s to %s", src, dst)
	}

	return renameByCopy(src, dst)
}
