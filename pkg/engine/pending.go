// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"
	"time"

	"github.com/jllopis/amethyst/pkg/core"
)

// handle is an in-flight async task. The fields below done are written by
// the worker goroutine before done is closed.
type handle struct {
	task    core.Task
	started time.Time
	done    chan struct{}

	value   any
	callErr error
	fatal   error
	// events were emitted by the branch and are replayed when it is joined.
	events []core.Event
}

// pendingTable holds the handles of dispatched async tasks until they are
// joined.
type pendingTable struct {
	mu      sync.Mutex
	handles map[string]*handle
	order   []string
}

func newPendingTable() *pendingTable {
	return &pendingTable{handles: make(map[string]*handle)}
}

func (p *pendingTable) add(h *handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles[h.task.ID] = h
	p.order = append(p.order, h.task.ID)
}

// take removes and returns the handle for id.
func (p *pendingTable) take(id string) (*handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[id]
	if ok {
		delete(p.handles, id)
	}
	return h, ok
}

// takeWhere removes and returns, in dispatch order, every handle whose task
// matches keep.
func (p *pendingTable) takeWhere(keep func(core.Task) bool) []*handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*handle
	remaining := p.order[:0]
	for _, id := range p.order {
		h, ok := p.handles[id]
		if !ok {
			continue
		}
		if keep(h.task) {
			out = append(out, h)
			delete(p.handles, id)
			continue
		}
		remaining = append(remaining, id)
	}
	p.order = remaining
	return out
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}
