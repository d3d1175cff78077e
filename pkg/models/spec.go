// Package models defines the shared data model for the tool execution hub:
// tool specifications, invocation intents and results, execution contexts,
// evidence records, and the error taxonomy.
package models

import (
	"fmt"
)

// ToolKind identifies which adapter handles a tool's invocation.
type ToolKind string

const (
	KindCore          ToolKind = "core"
	KindLocalFn       ToolKind = "local-fn"
	KindRPCTool       ToolKind = "rpc-tool"
	KindWorkflow      ToolKind = "workflow"
	KindImagePipeline ToolKind = "image-pipeline"
	KindSkill         ToolKind = "skill"
)

// Kinds lists every valid tool kind.
var Kinds = []ToolKind{KindCore, KindLocalFn, KindRPCTool, KindWorkflow, KindImagePipeline, KindSkill}

// Valid reports whether k is one of the closed set of tool kinds.
func (k ToolKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Capability is a permission token from a closed set. A call's ExecContext
// must grant every capability a tool declares before the policy gate admits
// the invocation.
type Capability string

const (
	CapReadFS      Capability = "read:fs"
	CapWriteFS     Capability = "write:fs"
	CapReadWeb     Capability = "read:web"
	CapReadDB      Capability = "read:db"
	CapWriteDB     Capability = "write:db"
	CapNetwork     Capability = "network"
	CapGPU         Capability = "gpu"
	CapWorkflow    Capability = "workflow"
	CapDestructive Capability = "danger:destructive"
)

// Capabilities lists every valid capability token.
var Capabilities = []Capability{
	CapReadFS, CapWriteFS, CapReadWeb, CapReadDB, CapWriteDB,
	CapNetwork, CapGPU, CapWorkflow, CapDestructive,
}

// Valid reports whether c is one of the closed set of capabilities.
func (c Capability) Valid() bool {
	for _, known := range Capabilities {
		if c == known {
			return true
		}
	}
	return false
}

// CostHints carries optional latency and asynchrony hints for a tool.
type CostHints struct {
	P50LatencyMs int  `json:"p50LatencyMs,omitempty" yaml:"p50LatencyMs,omitempty"`
	P95LatencyMs int  `json:"p95LatencyMs,omitempty" yaml:"p95LatencyMs,omitempty"`
	IsAsync      bool `json:"isAsync,omitempty" yaml:"isAsync,omitempty"`
}

// ToolSpec is the immutable declaration of a tool. The registry owns specs
// by name; adapters refer to them by name lookup, never by retained pointer.
type ToolSpec struct {
	// Name is the globally unique tool identifier, by convention
	// "namespace/leaf".
	Name string `json:"name"`

	// Version is a semver string.
	Version string `json:"version"`

	// Kind selects the adapter that executes this tool.
	Kind ToolKind `json:"kind"`

	// Description explains what the tool does; searchable.
	Description string `json:"description,omitempty"`

	// Tags are free-form labels; search is conjunctive over them.
	Tags []string `json:"tags,omitempty"`

	// Capabilities the tool requires from the caller.
	Capabilities []Capability `json:"capabilities"`

	// InputSchema and OutputSchema are JSON-Schema objects.
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`

	// CostHints are optional latency/async hints.
	CostHints *CostHints `json:"costHints,omitempty"`

	// Endpoint is an optional back-end URL (workflow webhooks, image
	// pipelines, HTTP rpc-tool servers).
	Endpoint string `json:"endpoint,omitempty"`

	// ResourceID is an opaque back-end identifier (workflow id, server id).
	ResourceID string `json:"resourceId,omitempty"`

	// Impl is a kind-private payload: a local function handle, workflow
	// definition, skill bundle, or connection config. Never serialized.
	Impl any `json:"-"`
}

// Validate checks the registry-level invariants: non-empty name and version,
// a valid kind, and both schemas present.
func (s *ToolSpec) Validate() error {
	if s == nil {
		return NewToolError(ErrValidation, "tool spec is nil", nil)
	}
	if s.Name == "" {
		return NewToolError(ErrValidation, "tool name is required", nil)
	}
	if s.Version == "" {
		return NewToolError(ErrValidation, fmt.Sprintf("tool %s: version is required", s.Name), nil)
	}
	if !s.Kind.Valid() {
		return NewToolError(ErrValidation, fmt.Sprintf("tool %s: invalid kind %q", s.Name, s.Kind), nil)
	}
	if s.InputSchema == nil {
		return NewToolError(ErrValidation, fmt.Sprintf("tool %s: inputSchema is required", s.Name), nil)
	}
	if s.OutputSchema == nil {
		return NewToolError(ErrValidation, fmt.Sprintf("tool %s: outputSchema is required", s.Name), nil)
	}
	return nil
}

// HasCapability reports whether the spec declares the given capability.
func (s *ToolSpec) HasCapability(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HasTag reports whether the spec carries the given tag.
func (s *ToolSpec) HasTag(tag string) bool {
	for _, have := range s.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own slices. Schemas and Impl are shared;
// both are treated as immutable after registration.
func (s *ToolSpec) Clone() *ToolSpec {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Tags != nil {
		clone.Tags = append([]string(nil), s.Tags...)
	}
	if s.Capabilities != nil {
		clone.Capabilities = append([]Capability(nil), s.Capabilities...)
	}
	if s.CostHints != nil {
		hints := *s.CostHints
		clone.CostHints = &hints
	}
	return &clone
}
