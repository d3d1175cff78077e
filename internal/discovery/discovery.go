// Package discovery scans filesystem roots for tool directories, loads
// kind-specific descriptors, and keeps the registry fresh through
// debounced filesystem watchers.
//
// A directory is a tool directory when it carries a tool.json manifest
// or exactly one inference marker: SKILL.md (skill), workflow.json
// (workflow), mcp.json (rpc-tool), or a tool.go entry module (local-fn).
// More than one marker without an explicit manifest kind is an error.
package discovery

import (
	"fmt"
)

// Root is one discovery root. Tools found under Path are named
// "<Namespace>/<leaf>".
type Root struct {
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Phase tells which stage of directory processing failed.
type Phase string

const (
	// PhaseManifest covers manifest reading and kind inference.
	PhaseManifest Phase = "manifest"

	// PhaseLoad covers the kind-specific descriptor loaders.
	PhaseLoad Phase = "load"

	// PhaseValidate covers final spec validation.
	PhaseValidate Phase = "validate"
)

// DirError is a per-directory discovery failure. Errors never abort the
// scan; they flow to the configured sink and sibling directories are
// still processed.
type DirError struct {
	Dir   string
	Phase Phase
	Err   error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("%s: %s phase: %v", e.Dir, e.Phase, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }
