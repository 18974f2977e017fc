// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snpm

import (
	"bytes"
	"fmt"
)

// collectedErrors aggregates failures from concurrent sibling operations so
// none of them is lost to a race for the first return.
type collectedErrors struct {
	errs []error
}

func (e *collectedErrors) Error() string {
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d errors occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(&buf, "\n\t%s", err)
	}
	return buf.String()
}

// collect folds errs into a single error, nil when there are none.
func collect(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	default:
		return &collectedErrors{errs: errs}
	}
}
