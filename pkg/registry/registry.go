// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps resource names to their definitions for one run.
//
// A Registry is written during the sequential planning phase (parsing,
// hydration, enrichment) and only read once execution starts, so it carries
// no locking of its own.
package registry

import (
	"iter"
	"sort"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

// Registry holds the resources visible to a run.
type Registry struct {
	resources map[string]core.Resource
}

// New creates an empty registry, optionally seeded with resources.
func New(resources ...core.Resource) *Registry {
	r := &Registry{resources: make(map[string]core.Resource, len(resources))}
	for _, res := range resources {
		r.Register(res)
	}
	return r
}

// Register upserts a resource by name. The last write wins and replaces the
// previous definition entirely.
func (r *Registry) Register(res core.Resource) {
	r.resources[res.Name] = res.Clone()
}

// Get returns the resource registered under name.
func (r *Registry) Get(name string) (core.Resource, error) {
	res, ok := r.resources[name]
	if !ok {
		return core.Resource{}, errors.Newf(errors.CodeResourceNotFound, "resource %q is not registered", name).
			WithContext("resource", name)
	}
	return res.Clone(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.resources[name]
	return ok
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	return len(r.resources)
}

// List returns a lazy sequence of every resource, ordered by name. The
// sequence can be ranged over any number of times and yields copies.
func (r *Registry) List() iter.Seq[core.Resource] {
	return func(yield func(core.Resource) bool) {
		for _, name := range r.names() {
			if !yield(r.resources[name].Clone()) {
				return
			}
		}
	}
}

// Snapshot collects List into a slice.
func (r *Registry) Snapshot() []core.Resource {
	out := make([]core.Resource, 0, len(r.resources))
	for res := range r.List() {
		out = append(out, res)
	}
	return out
}

// Filter returns the resources matching keep, ordered by name.
func (r *Registry) Filter(keep func(core.Resource) bool) []core.Resource {
	var out []core.Resource
	for res := range r.List() {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
