// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package syntax splits structured workflow code into executable units.
//
// A file holds agent and function blocks:
//
//	function summarize-all
//	repeat for each in input
//	parallel use google_docs to summarize the doc
//	end repeat
//	wait
//	end function
//
//	main agent bulk-summary
//	use google_docs to list the files "GTA4" and "RDR2"
//	use summarize-all to get updated docs
//	end agent
//
// Agent bodies are kept verbatim for the interpreter. Function bodies are
// split into sequence, repeat and wait blocks executed by the engine.
package syntax

import (
	"fmt"
	"strings"

	"github.com/jllopis/amethyst/pkg/core"
)

// BlockType enumerates the structural blocks of a function body.
type BlockType string

const (
	BlockSequence BlockType = "sequence"
	BlockRepeat   BlockType = "repeat"
	BlockWait     BlockType = "wait"
)

// Statement is one executable line.
type Statement struct {
	Text     string `json:"text"`
	Parallel bool   `json:"is_parallel,omitempty"`
	Line     int    `json:"line"`
}

// Block is a run of statements with shared control flow.
type Block struct {
	Type       BlockType   `json:"type"`
	Statements []Statement `json:"statements,omitempty"`
}

// Unit is an agent or function defined in code.
type Unit struct {
	Kind   core.ResourceKind `json:"type"`
	Name   string            `json:"name"`
	Main   bool              `json:"is_main,omitempty"`
	Body   string            `json:"code"`
	Blocks []Block           `json:"blocks,omitempty"`
	Line   int               `json:"line"`
}

// Resource returns the registry entry for the unit.
func (u Unit) Resource() core.Resource {
	return core.Resource{
		Kind:     u.Kind,
		Name:     u.Name,
		Provider: core.ProviderAmethyst,
		Code:     u.Body,
		Main:     u.Main,
	}
}

// Program is a parsed file.
type Program struct {
	Units []Unit `json:"units"`
}

// Main returns the entry unit: the one flagged main, or the last unit when
// none is flagged.
func (p *Program) Main() (Unit, bool) {
	if p == nil || len(p.Units) == 0 {
		return Unit{}, false
	}
	for _, u := range p.Units {
		if u.Main {
			return u, true
		}
	}
	return p.Units[len(p.Units)-1], true
}

// Unit returns the unit with the given name.
func (p *Program) Unit(name string) (Unit, bool) {
	for _, u := range p.Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// Names lists unit names in file order.
func (p *Program) Names() []string {
	out := make([]string, 0, len(p.Units))
	for _, u := range p.Units {
		out = append(out, u.Name)
	}
	return out
}

// SyntaxError reports a structural problem with its line number.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse splits code into units.
func Parse(code string) (*Program, error) {
	prog := &Program{}
	var (
		cur   *Unit
		body  []string
		mains int
	)
	seen := map[string]int{}

	for i, raw := range strings.Split(code, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		if cur == nil {
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			kind, name, main, ok := parseHeader(line)
			if !ok {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("expected agent or function block, got %q", line)}
			}
			if name == "" {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("%s block needs a name", kind)}
			}
			if prev, dup := seen[name]; dup {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("%q already defined on line %d", name, prev)}
			}
			seen[name] = lineNo
			if main {
				mains++
			}
			cur = &Unit{Kind: kind, Name: name, Main: main, Line: lineNo}
			body = body[:0]
			continue
		}

		if isEnd(line, string(cur.Kind)) {
			cur.Body = strings.TrimSpace(strings.Join(body, "\n"))
			if cur.Kind == core.ResourceFunction {
				blocks, err := parseBlocks(body, cur.Line+1)
				if err != nil {
					return nil, err
				}
				cur.Blocks = blocks
			}
			prog.Units = append(prog.Units, *cur)
			cur = nil
			continue
		}
		body = append(body, raw)
	}

	if cur != nil {
		return nil, &SyntaxError{Line: cur.Line, Msg: fmt.Sprintf("%s %q is missing \"end %s\"", cur.Kind, cur.Name, cur.Kind)}
	}
	if len(prog.Units) == 0 {
		return nil, &SyntaxError{Line: 1, Msg: "no agent or function blocks found"}
	}
	if mains > 1 {
		return nil, &SyntaxError{Line: 1, Msg: "more than one main block"}
	}
	return prog, nil
}

func parseHeader(line string) (core.ResourceKind, string, bool, bool) {
	fields := strings.Fields(line)
	main := false
	if len(fields) > 0 && strings.EqualFold(fields[0], "main") {
		main = true
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", "", false, false
	}
	var kind core.ResourceKind
	switch strings.ToLower(fields[0]) {
	case "agent":
		kind = core.ResourceAgent
	case "function":
		kind = core.ResourceFunction
	default:
		return "", "", false, false
	}
	return kind, strings.Join(fields[1:], " "), main, true
}

func isEnd(line, keyword string) bool {
	fields := strings.Fields(strings.ToLower(line))
	return len(fields) == 2 && fields[0] == "end" && fields[1] == keyword
}

func parseBlocks(lines []string, firstLine int) ([]Block, error) {
	var (
		blocks  []Block
		seq     *Block
		repeat  *Block
		repLine int
	)
	flushSeq := func() {
		if seq != nil && len(seq.Statements) > 0 {
			blocks = append(blocks, *seq)
		}
		seq = nil
	}

	for i, raw := range lines {
		lineNo := firstLine + i
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(lower, "repeat"):
			if repeat != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: "nested repeat blocks are not supported"}
			}
			flushSeq()
			repeat = &Block{Type: BlockRepeat}
			repLine = lineNo
		case isEnd(line, "repeat"):
			if repeat == nil {
				return nil, &SyntaxError{Line: lineNo, Msg: "end repeat without repeat"}
			}
			blocks = append(blocks, *repeat)
			repeat = nil
		case lower == "wait" || strings.HasPrefix(lower, "wait "):
			if repeat != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: "wait inside repeat"}
			}
			flushSeq()
			blocks = append(blocks, Block{Type: BlockWait})
		default:
			stmt := parseStatement(line, lineNo)
			if repeat != nil {
				repeat.Statements = append(repeat.Statements, stmt)
				continue
			}
			if seq == nil {
				seq = &Block{Type: BlockSequence}
			}
			seq.Statements = append(seq.Statements, stmt)
		}
	}
	if repeat != nil {
		return nil, &SyntaxError{Line: repLine, Msg: "repeat is missing \"end repeat\""}
	}
	flushSeq()
	return blocks, nil
}

func parseStatement(line string, lineNo int) Statement {
	for _, prefix := range []string{"in parallel ", "parallel "} {
		if len(line) > len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			return Statement{Text: strings.TrimSpace(line[len(prefix):]), Parallel: true, Line: lineNo}
		}
	}
	return Statement{Text: line, Line: lineNo}
}
