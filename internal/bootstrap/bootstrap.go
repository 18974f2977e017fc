// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootstrap hydrates the store through an external installer. The
// engine writes a minimal manifest listing only the unresolved dependencies
// into a scratch directory, runs the installer there, and leaves the scratch
// node_modules tree for the store to absorb.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/manifest"
)

// defaultStallLimit is how long the installer may go without writing to
// stdout or stderr before it is presumed hung and killed. Registry fetches
// chatter constantly, so a silent installer is a stuck installer.
const defaultStallLimit = 2 * time.Minute

// Request is one unresolved dependency handed to the installer.
type Request struct {
	Name  string
	Range string
}

// Installer describes the external package-manager invocation.
type Installer struct {
	Command string   // binary name, e.g. "npm"
	Args    []string // install verb and fixed arguments
	Timeout time.Duration
}

// Default returns the stock installer invocation.
func Default() *Installer {
	return &Installer{Command: "npm", Args: []string{"install"}}
}

// Run writes the minimal manifest for deps into scratchDir and executes the
// installer with scratchDir as its working directory. The process is killed
// if ctx ends or if it stays silent past the stall limit. Its output is
// captured either way; on failure it is folded into the returned error
// together with the scratch path and the requested dependencies.
func (b *Installer) Run(ctx context.Context, scratchDir string, deps []Request, legacyPeerDeps bool) error {
	doc := manifest.NewDoc()
	for _, d := range deps {
		doc.Set(manifest.SectionDependencies, d.Name, d.Range)
	}
	mpath := filepath.Join(scratchDir, manifest.Name)
	if err := doc.Write(mpath); err != nil {
		return err
	}

	args := b.Args
	if legacyPeerDeps {
		args = append(append([]string(nil), args...), "--legacy-peer-deps")
	}
	cmd := exec.Command(b.Command, args...)
	cmd.Dir = scratchDir

	var stdout, stderr installerOutput
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	fail := func(cause error) error {
		return &Error{
			Scratch: scratchDir,
			Deps:    deps,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Cause:   cause,
		}
	}

	// The stall clock starts at launch; an installer that has not written
	// yet is still warming up, not hung.
	now := time.Now()
	stdout.last, stderr.last = now, now

	if err := cmd.Start(); err != nil {
		return fail(errors.Wrapf(err, "cannot start %s", b.Command))
	}

	stall := b.Timeout
	if stall == 0 {
		stall = defaultStallLimit
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// Poll for liveness rather than arming one timer: every write to either
	// stream pushes the deadline out again.
	poll := time.NewTicker(stall / 4)
	defer poll.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return fail(errors.Wrapf(err, "%s exited", b.Command))
			}
			return nil
		case <-ctx.Done():
			cmd.Process.Kill()
			<-done
			return fail(ctx.Err())
		case <-poll.C:
			if time.Since(stdout.lastWrite()) > stall && time.Since(stderr.lastWrite()) > stall {
				cmd.Process.Kill()
				<-done
				return fail(errors.Errorf("%s produced no output for %s", b.Command, stall))
			}
		}
	}
}

// installerOutput collects one of the installer's streams and remembers when
// it last grew, which is what the stall detection keys on.
type installerOutput struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	last time.Time
}

func (o *installerOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = time.Now()
	return o.buf.Write(p)
}

func (o *installerOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func (o *installerOutput) lastWrite() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Error wraps a failed bootstrap invocation with everything needed to
// diagnose it.
type Error struct {
	Scratch string
	Deps    []Request
	Stdout  string
	Stderr  string
	Cause   error
}

func (e *Error) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "bootstrap install failed in %s: %s", e.Scratch, e.Cause)
	fmt.Fprintf(&buf, "\nrequested:")
	for _, d := range e.Deps {
		fmt.Fprintf(&buf, " %s@%s", d.Name, d.Range)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&buf, "\nstdout:\n%s", e.Stdout)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&buf, "\nstderr:\n%s", e.Stderr)
	}
	return buf.String()
}

// Unwrap exposes the underlying process error.
func (e *Error) Unwrap() error { return e.Cause }

var _ error = (*Error)(nil)
