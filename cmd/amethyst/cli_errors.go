// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/amethyst/pkg/errors"
)

// CLIError wraps a runtime error with a hint for the user.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the runtime error.
func (e *CLIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NewConfigError reports a configuration problem.
func NewConfigError(err error, path string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "invalid configuration", err)
	if path != "" {
		e = e.WithContext("path", path)
	}
	return NewCLIError(e, "check the config file and AMETHYST_* variables")
}

// NewInvalidArgumentError reports a bad command line.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, reason, nil).WithContext("argument", arg)
	return NewCLIError(e, "run 'amethyst help' for usage")
}

// hintFor suggests a next step for an error code.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeUnauthorized:
		return "set connect.project_id, connect.external_user_id and connect.token"
	case errors.CodeLLMError:
		return "check llm.provider, llm.model and the provider credentials"
	case errors.CodeMalformedPlan:
		return "the interpreter produced an inconsistent plan; inspect the events with -format json"
	case errors.CodeLimitExceeded:
		return "raise engine.max_iterations or simplify the agent code"
	case errors.CodeMemoryError:
		return "check memory.store and memory.path"
	case errors.CodeTimeout:
		return "raise engine.call_timeout or check the resource endpoints"
	}
	return ""
}

// printError writes err to w, as a JSON object when asJSON is set.
func printError(w io.Writer, err error, asJSON bool) {
	if err == nil {
		return
	}
	cliErr, ok := err.(*CLIError)
	if !ok || cliErr.Err == nil {
		e := errors.Wrap(err)
		cliErr = NewCLIError(e, hintFor(e.Code))
	}
	if asJSON {
		payload := map[string]any{
			"error": map[string]any{
				"code":    cliErr.Err.Code,
				"message": errorMessage(cliErr.Err),
				"hint":    cliErr.Hint,
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", cliErr.Err.Code, errorMessage(cliErr.Err))
	if cliErr.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", cliErr.Hint)
	}
}

// errorMessage is the message of e and its cause, without the code prefix.
func errorMessage(e *errors.Error) string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}
