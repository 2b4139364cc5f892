// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jllopis/amethyst/pkg/app"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/syntax"
)

type validatedFile struct {
	Index int           `json:"index"`
	Name  string        `json:"name,omitempty"`
	Units []syntax.Unit `json:"units"`
}

// validateCommand parses every file of an app without contacting any
// service.
func validateCommand(global globalFlags, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	appPath := fs.String("app", "", "application manifest (yaml or json)")
	if err := fs.Parse(args); err != nil {
		printError(stderr, NewInvalidArgumentError("validate", err.Error()), global.JSON)
		return exitFailure
	}
	if *appPath == "" {
		printError(stderr, NewInvalidArgumentError("app", "-app is required"), global.JSON)
		return exitFailure
	}

	a, err := app.Load(*appPath)
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}

	files := make([]validatedFile, 0, len(a.Files))
	for i, f := range a.Files {
		prog, err := syntax.Parse(f.Content)
		if err != nil {
			e := errors.New(errors.CodeMalformedPlan, fmt.Sprintf("file %d does not parse", i+1), err)
			printError(stderr, e, global.JSON)
			return exitFailure
		}
		files = append(files, validatedFile{Index: i + 1, Name: f.Name, Units: prog.Units})
	}

	if global.JSON {
		printJSON(stdout, map[string]any{"valid": true, "files": files})
		return exitOK
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tUNIT\tKIND\tMAIN\tLINE")
	for _, f := range files {
		for _, u := range f.Units {
			main := ""
			if u.Main {
				main = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", f.Index, u.Name, u.Kind, main, u.Line)
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(stdout, "%d file(s) valid\n", len(files))
	return exitOK
}
