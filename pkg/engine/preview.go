// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/jllopis/amethyst/pkg/app"
	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/syntax"
)

// FilePlan describes how a file would run.
type FilePlan struct {
	Index      int             `json:"index"`
	Main       string          `json:"main"`
	Units      []syntax.Unit   `json:"units"`
	NeedsOAuth []core.Resource `json:"needs_oauth,omitempty"`
}

// Preview is the outcome of the planning phase of every file.
type Preview struct {
	Files             []FilePlan        `json:"files"`
	Resources         []core.Resource   `json:"resources"`
	HydrationFailures map[string]string `json:"hydration_failures,omitempty"`
}

// Plan parses and hydrates a without executing anything. Unlike Run it
// does not stop at the first file that needs authorization.
func (e *Engine) Plan(ctx context.Context, a *app.App) (*Preview, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "invalid app", err)
	}
	r := e.newRun("", a)
	out := &Preview{}
	for idx, file := range a.Files {
		prog, blocked, err := r.plan(ctx, file)
		if err != nil {
			return nil, err
		}
		main, _ := prog.Main()
		out.Files = append(out.Files, FilePlan{
			Index:      idx + 1,
			Main:       main.Name,
			Units:      prog.Units,
			NeedsOAuth: blocked,
		})
	}
	out.Resources = r.reg.Snapshot()
	out.HydrationFailures = r.hydrationFailures
	return out, nil
}
