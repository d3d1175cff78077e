// Package workflow drives multi-step tool pipelines. Definitions come
// from workflow.json files; the embedded engine runs their nodes in
// process, while remote workflows go through the webhook adapter.
package workflow

import (
	"encoding/json"
	"fmt"
)

// Node is one step of a workflow. Each node invokes a tool with its args
// after reference resolution.
type Node struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Definition is an engine-level workflow.
type Definition struct {
	// ID is the externally assigned identifier. Optional; sync falls
	// back to Name when absent.
	ID string `json:"id,omitempty"`

	// Name is the workflow name, unique within the engine.
	Name string `json:"name"`

	Description string `json:"description,omitempty"`

	// Nodes run sequentially. At least one is required.
	Nodes []Node `json:"nodes"`
}

// ParseDefinition decodes and validates a workflow.json payload.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural requirements.
func (d *Definition) Validate() error {
	if d.Name == "" && d.ID == "" {
		return fmt.Errorf("workflow needs an id or a name")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("workflow %s: nodes array is required and must not be empty", d.displayName())
	}
	seen := make(map[string]bool, len(d.Nodes))
	for i, node := range d.Nodes {
		if node.Tool == "" {
			return fmt.Errorf("workflow %s: node %d has no tool", d.displayName(), i)
		}
		if node.ID != "" {
			if seen[node.ID] {
				return fmt.Errorf("workflow %s: duplicate node id %q", d.displayName(), node.ID)
			}
			seen[node.ID] = true
		}
	}
	return nil
}

func (d *Definition) displayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
