// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snpm is a fast package installer that links every dependency into
// node_modules as a symlink onto a shared content-addressed store.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	snpm "github.com/snpm-io/snpm"
)

type command interface {
	Name() string           // "foobar"
	Args() string           // "<baz> [quux...]"
	ShortHelp() string      // "Foo the first bar"
	LongHelp() string       // "Foo the first bar meeting the following conditions..."
	Register(*flag.FlagSet) // command-specific flags
	Hidden() bool           // indicates whether the command should be hidden from help output
	Run(*snpm.Ctx, []string) error
}

// aliases maps the short sub-command spellings onto their commands.
var aliases = map[string]string{
	"i":      "install",
	"add":    "install",
	"a":      "install",
	"u":      "uninstall",
	"remove": "uninstall",
	"r":      "uninstall",
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory", err)
		os.Exit(1)
	}
	c := &Config{
		Args:       os.Args,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		WorkingDir: wd,
	}
	os.Exit(c.Run())
}

// A Config specifies a full configuration for a snpm execution.
type Config struct {
	WorkingDir     string    // Where to execute
	Args           []string  // Command-line arguments, starting with the program name.
	Stdout, Stderr io.Writer // Log output
}

// Run executes a configuration and returns an exit code.
func (c *Config) Run() (exitCode int) {
	// Build the list of available commands.
	commands := []command{
		&installCommand{},
		&uninstallCommand{},
		&versionCommand{},
	}

	examples := [][2]string{
		{
			"snpm",
			"install the project's declared dependencies",
		},
		{
			"snpm install left-pad",
			"add a dependency to the project",
		},
		{
			"snpm install express:dts",
			"add a dependency together with its type stubs",
		},
		{
			"snpm uninstall tar",
			"drop a dependency from the project",
		},
	}

	outLogger := log.New(c.Stdout, "", 0)
	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("snpm installs node packages as symlinks into a shared store")
		errLogger.Println()
		errLogger.Println("Usage: snpm <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			if !cmd.Hidden() {
				fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
			}
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println("Examples:")
		for _, example := range examples {
			fmt.Fprintf(w, "\t%s\t%s\n", example[0], example[1])
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println("Use \"snpm help [command]\" for more information about a command.")
	}

	cmdName, printCommandHelp, exit, cmdArgs := parseArgs(c.Args)
	if exit {
		usage()
		exitCode = 1
		return
	}
	if resolved, ok := aliases[cmdName]; ok {
		cmdName = resolved
	}

	for _, cmd := range commands {
		if cmd.Name() == cmdName {
			// Build flag set with global flags in there.
			fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
			fs.SetOutput(c.Stderr)
			verbose := fs.Bool("v", false, "enable verbose logging")
			fs.BoolVar(verbose, "verbose", false, "enable verbose logging")
			quiet := fs.Bool("q", false, "suppress non-error output")
			fs.BoolVar(quiet, "quiet", false, "suppress non-error output")

			// Register the subcommand flags in there, too.
			cmd.Register(fs)

			// Override the usage text to something nicer.
			setUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

			if printCommandHelp {
				fs.Usage()
				exitCode = 1
				return
			}

			// Parse the flags the user gave us.
			if err := fs.Parse(cmdArgs); err != nil {
				exitCode = 1
				return
			}

			ctx := &snpm.Ctx{
				WorkingDir: c.WorkingDir,
				Out:        outLogger,
				Err:        errLogger,
				Verbose:    *verbose,
				Quiet:      *quiet,
			}

			if err := cmd.Run(ctx, fs.Args()); err != nil {
				errLogger.Printf("snpm %s: %v\n", Version, err)
				exitCode = 1
				return
			}
			return
		}
	}

	errLogger.Printf("snpm: %s: no such command\n", cmdName)
	usage()
	exitCode = 1
	return
}

// setUsage replaces the flag package's default usage dump with the command's
// long help. The whole text is assembled up front into one buffer so a help
// request prints atomically, flags rendered as an aligned table at the end.
func setUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var help bytes.Buffer
	fmt.Fprintf(&help, "Usage: snpm %s %s\n\n", name, args)
	fmt.Fprintf(&help, "%s\n", strings.TrimSpace(longHelp))

	var rows [][2]string
	fs.VisitAll(func(f *flag.Flag) {
		usage := f.Usage
		// Flags that default to something real say so; silent empties
		// would read as mistakes.
		if f.DefValue != "" {
			usage = fmt.Sprintf("%s (default: %s)", usage, f.DefValue)
		}
		rows = append(rows, [2]string{"-" + f.Name, usage})
	})
	if len(rows) > 0 {
		fmt.Fprintf(&help, "\nFlags:\n\n")
		w := tabwriter.NewWriter(&help, 0, 4, 2, ' ', 0)
		for _, row := range rows {
			fmt.Fprintf(w, "\t%s\t%s\n", row[0], row[1])
		}
		w.Flush()
	}

	fs.Usage = func() {
		logger.Println(help.String())
	}
}

// parseArgs determines the sub-command (defaulting to install when none is
// given), whether the user asked for help, and the arguments to hand the
// command.
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool, cmdArgs []string) {
	isHelpArg := func(s string) bool {
		return strings.Contains(strings.ToLower(s), "help") || strings.ToLower(s) == "-h"
	}

	switch len(args) {
	case 0, 1:
		cmdName = "install"
	default:
		switch {
		case isHelpArg(args[1]):
			if len(args) > 2 {
				cmdName = args[2]
				printCmdUsage = true
			} else {
				exit = true
			}
		case args[1] == "-version" || args[1] == "--version":
			cmdName = "version"
		case strings.HasPrefix(args[1], "-"):
			// Bare flags mean the default install-from-manifest.
			cmdName = "install"
			cmdArgs = args[1:]
		default:
			cmdName = args[1]
			cmdArgs = args[2:]
		}
	}
	return cmdName, printCmdUsage, exit, cmdArgs
}
