package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// ManifestFilename is the optional per-directory manifest.
const ManifestFilename = "tool.json"

// Manifest is the tool.json shape. Every field is optional; values merge
// over what the kind loader inferred.
type Manifest struct {
	Kind         string            `json:"kind,omitempty"`
	Name         string            `json:"name,omitempty"`
	Version      string            `json:"version,omitempty"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	CostHints    *models.CostHints `json:"costHints,omitempty"`
	InputSchema  map[string]any    `json:"inputSchema,omitempty"`
	OutputSchema map[string]any    `json:"outputSchema,omitempty"`
	Enabled      *bool             `json:"enabled,omitempty"`
	EntryPoint   string            `json:"entryPoint,omitempty"`
	Endpoint     string            `json:"endpoint,omitempty"`
}

// readManifest loads tool.json from dir. A missing file returns a nil
// manifest without error.
func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFilename, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFilename, err)
	}
	return &m, nil
}

// enabled reports whether the directory should be loaded at all.
func (m *Manifest) enabled() bool {
	return m == nil || m.Enabled == nil || *m.Enabled
}

// apply overlays the manifest onto a loader-produced spec. Explicit
// manifest values win over inferred ones.
func (m *Manifest) apply(spec *models.ToolSpec) {
	if m == nil {
		return
	}
	if m.Name != "" {
		spec.Name = m.Name
	}
	if m.Version != "" {
		spec.Version = m.Version
	}
	if m.Description != "" {
		spec.Description = m.Description
	}
	if len(m.Tags) > 0 {
		spec.Tags = append([]string(nil), m.Tags...)
	}
	if len(m.Capabilities) > 0 {
		caps := make([]models.Capability, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, models.Capability(c))
		}
		spec.Capabilities = caps
	}
	if m.CostHints != nil {
		hints := *m.CostHints
		spec.CostHints = &hints
	}
	if m.InputSchema != nil {
		spec.InputSchema = m.InputSchema
	}
	if m.OutputSchema != nil {
		spec.OutputSchema = m.OutputSchema
	}
	if m.Endpoint != "" {
		spec.Endpoint = m.Endpoint
	}
}
