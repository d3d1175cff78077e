package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/mcp"
	"github.com/haasonsaas/toolhub/internal/skills"
	"github.com/haasonsaas/toolhub/internal/workflow"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// serverEntry is one server block inside mcp.json.
type serverEntry struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// loadRPCTool parses mcp.json into a server config. Both the bare
// {command,args,env} / {url} form and the {mcpServers:{name:...}} wrapper
// are accepted; with a wrapper, the entry keyed by the tool's leaf name
// wins, else the first entry in key order.
func loadRPCTool(dir, leaf string) (*models.ToolSpec, error) {
	data, err := os.ReadFile(filepath.Join(dir, rpcMarker))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rpcMarker, err)
	}

	entry, err := pickServerEntry(data, leaf)
	if err != nil {
		return nil, err
	}
	if entry.Command == "" && entry.URL == "" {
		return nil, fmt.Errorf("%s needs a command or a url", rpcMarker)
	}

	cfg := &mcp.ServerConfig{
		ID:      leaf,
		Command: entry.Command,
		Args:    entry.Args,
		Env:     entry.Env,
		URL:     entry.URL,
	}
	if entry.URL != "" {
		cfg.Transport = mcp.TransportHTTP
	} else {
		cfg.Transport = mcp.TransportStdio
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &models.ToolSpec{
		Kind:         models.KindRPCTool,
		Description:  fmt.Sprintf("MCP tool server %s", leaf),
		Capabilities: []models.Capability{models.CapNetwork},
		ResourceID:   cfg.ID,
		Endpoint:     cfg.URL,
		Impl:         cfg,
	}, nil
}

func pickServerEntry(data []byte, leaf string) (*serverEntry, error) {
	var wrapper struct {
		MCPServers map[string]json.RawMessage `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rpcMarker, err)
	}

	raw := json.RawMessage(data)
	if len(wrapper.MCPServers) > 0 {
		if named, ok := wrapper.MCPServers[leaf]; ok {
			raw = named
		} else {
			keys := make([]string, 0, len(wrapper.MCPServers))
			for k := range wrapper.MCPServers {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			raw = wrapper.MCPServers[keys[0]]
		}
	}

	var entry serverEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("parse %s server entry: %w", rpcMarker, err)
	}
	return &entry, nil
}

// loadWorkflow parses workflow.json. The definition's id becomes the
// spec's resourceId; the embedded engine imports the definition itself
// on first execute. A manifest-declared workflow without a definition
// file but with an endpoint is a remote (webhook) workflow.
func loadWorkflow(dir string, manifest *Manifest) (*models.ToolSpec, error) {
	data, err := os.ReadFile(filepath.Join(dir, workflowMarker))
	if os.IsNotExist(err) && manifest != nil && manifest.Endpoint != "" {
		return &models.ToolSpec{
			Kind:         models.KindWorkflow,
			Capabilities: []models.Capability{models.CapWorkflow, models.CapNetwork},
			Endpoint:     manifest.Endpoint,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", workflowMarker, err)
	}

	def, err := workflow.ParseDefinition(data)
	if err != nil {
		return nil, err
	}

	resourceID := def.ID
	if resourceID == "" {
		resourceID = def.Name
	}
	return &models.ToolSpec{
		Kind:         models.KindWorkflow,
		Description:  def.Description,
		Capabilities: []models.Capability{models.CapWorkflow},
		ResourceID:   resourceID,
		Impl:         def,
	}, nil
}

// loadSkill loads the SKILL.md bundle. Without an attached handler the
// skill adapter serves the instruction payload as-is.
func loadSkill(dir string) (*models.ToolSpec, error) {
	def, err := skills.Load(dir)
	if err != nil {
		return nil, err
	}
	return &models.ToolSpec{
		Kind:        models.KindSkill,
		Description: def.Frontmatter.Description,
		Impl:        &adapters.SkillImpl{Definition: def},
	}, nil
}

// loadImagePipeline builds a spec for a manifest-declared image pipeline.
// There is no marker file; the manifest must name the kind and endpoint.
func loadImagePipeline(manifest *Manifest) (*models.ToolSpec, error) {
	if manifest == nil || manifest.Endpoint == "" {
		return nil, fmt.Errorf("image-pipeline tools need an endpoint in %s", ManifestFilename)
	}
	return &models.ToolSpec{
		Kind:         models.KindImagePipeline,
		Capabilities: []models.Capability{models.CapNetwork, models.CapGPU},
		Endpoint:     manifest.Endpoint,
	}, nil
}
