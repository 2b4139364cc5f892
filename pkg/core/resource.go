// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "fmt"

// ResourceKind enumerates the invocable resource variants.
type ResourceKind string

const (
	ResourceTool     ResourceKind = "tool"
	ResourceAgent    ResourceKind = "agent"
	ResourceFunction ResourceKind = "function"
)

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceTool, ResourceAgent, ResourceFunction:
		return true
	}
	return false
}

// Provider tags where a resource is served from.
const (
	// ProviderAmethyst resources are hydrated from the Amethyst discovery server
	// and called over plain HTTP or A2A.
	ProviderAmethyst = "amethyst"
	// ProviderExternal resources are third-party apps reached through MCP and
	// need a connected account.
	ProviderExternal = "external"
)

// ConnectionStatus describes the authorization state of a resource.
type ConnectionStatus string

const (
	ConnectionUnknown    ConnectionStatus = ""
	ConnectionConnected  ConnectionStatus = "connected"
	ConnectionNeedsOAuth ConnectionStatus = "needs_oauth"
)

// Skill is a capability advertised by an agent card.
type Skill struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Resource is a named, externally invocable capability.
type Resource struct {
	Kind             ResourceKind     `json:"type" yaml:"type"`
	Name             string           `json:"name" yaml:"name"`
	Provider         string           `json:"provider" yaml:"provider"`
	URL              string           `json:"url,omitempty" yaml:"url,omitempty"`
	Key              string           `json:"key,omitempty" yaml:"key,omitempty"`
	ConnectionStatus ConnectionStatus `json:"connection_status,omitempty" yaml:"connection_status,omitempty"`
	AuthURL          string           `json:"auth_url,omitempty" yaml:"auth_url,omitempty"`
	Parameters       map[string]any   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Skills           []Skill          `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`

	// Code is the body of agents and functions defined in workflow code.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
	// Main marks the entry point of a code unit.
	Main bool `json:"is_main,omitempty" yaml:"is_main,omitempty"`
}

// Composite reports whether invoking r runs a nested workflow rather than a
// single remote call.
func (r Resource) Composite() bool {
	return r.Kind == ResourceFunction || (r.Kind == ResourceAgent && r.Code != "")
}

// NeedsOAuth reports whether r blocks a run until authorized out of band.
func (r Resource) NeedsOAuth() bool {
	return r.ConnectionStatus == ConnectionNeedsOAuth
}

// Validate checks the fields every resource must carry.
func (r Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource name is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("resource %q: unknown type %q", r.Name, r.Kind)
	}
	return nil
}

// Clone returns a deep enough copy for the registry to hand out.
func (r Resource) Clone() Resource {
	out := r
	if r.Parameters != nil {
		out.Parameters = make(map[string]any, len(r.Parameters))
		for k, v := range r.Parameters {
			out.Parameters[k] = v
		}
	}
	if r.Skills != nil {
		out.Skills = append([]Skill(nil), r.Skills...)
	}
	return out
}
