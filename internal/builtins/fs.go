package builtins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/policy"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func registerFSTools(adapter *adapters.CoreAdapter, config Config) error {
	readSpec := &models.ToolSpec{
		Name:        "fs.readText",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Read a UTF-8 text file from inside the sandbox",
		Tags:        []string{"fs", "core"},
		Capabilities: []models.Capability{
			models.CapReadFS,
		},
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"path"},
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "File path, absolute or relative to the first sandbox root"},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"content", "path"},
			"properties": map[string]any{
				"content": map[string]any{"type": "string"},
				"path":    map[string]any{"type": "string"},
				"bytes":   map[string]any{"type": "integer"},
			},
		},
	}
	if err := adapter.RegisterTool(readSpec, readTextHandler(config)); err != nil {
		return err
	}

	writeSpec := &models.ToolSpec{
		Name:        "fs.writeText",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Write a UTF-8 text file inside the sandbox",
		Tags:        []string{"fs", "core"},
		Capabilities: []models.Capability{
			models.CapWriteFS,
		},
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"path", "content"},
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"path", "bytes"},
			"properties": map[string]any{
				"path":  map[string]any{"type": "string"},
				"bytes": map[string]any{"type": "integer"},
			},
		},
	}
	if err := adapter.RegisterTool(writeSpec, writeTextHandler(config)); err != nil {
		return err
	}

	listSpec := &models.ToolSpec{
		Name:        "fs.list",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "List directory entries inside the sandbox",
		Tags:        []string{"fs", "core"},
		Capabilities: []models.Capability{
			models.CapReadFS,
		},
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"path"},
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"entries"},
			"properties": map[string]any{
				"entries": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"type": map[string]any{"type": "string"},
							"size": map[string]any{"type": "integer"},
						},
					},
				},
			},
		},
	}
	return adapter.RegisterTool(listSpec, listHandler(config))
}

func readTextHandler(config Config) adapters.CoreHandler {
	return func(_ context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		raw, _ := args["path"].(string)
		resolved, err := policy.ResolveInSandbox(raw, config.SandboxRoots)
		if err != nil {
			return nil, nil, err
		}

		info, err := os.Stat(resolved)
		if err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, fmt.Sprintf("stat %s", raw), err)
		}
		if info.Size() > config.MaxFileBytes {
			return nil, nil, models.NewToolError(models.ErrFileTooLarge,
				fmt.Sprintf("%s is %d bytes, limit is %d", raw, info.Size(), config.MaxFileBytes),
				map[string]any{"size": info.Size(), "limit": config.MaxFileBytes})
		}

		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, fmt.Sprintf("read %s", raw), err)
		}

		evidence := []models.Evidence{{
			Type:      models.EvidenceFile,
			Ref:       resolved,
			Summary:   fmt.Sprintf("read %d bytes", len(data)),
			CreatedAt: time.Now().UTC(),
		}}
		return map[string]any{
			"content": string(data),
			"path":    resolved,
			"bytes":   len(data),
		}, evidence, nil
	}
}

func writeTextHandler(config Config) adapters.CoreHandler {
	return func(_ context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		raw, _ := args["path"].(string)
		content, _ := args["content"].(string)

		resolved, err := policy.ResolveInSandbox(raw, config.SandboxRoots)
		if err != nil {
			return nil, nil, err
		}
		if int64(len(content)) > config.MaxFileBytes {
			return nil, nil, models.NewToolError(models.ErrFileTooLarge,
				fmt.Sprintf("content is %d bytes, limit is %d", len(content), config.MaxFileBytes),
				map[string]any{"size": len(content), "limit": config.MaxFileBytes})
		}

		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, fmt.Sprintf("create parent of %s", raw), err)
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, fmt.Sprintf("write %s", raw), err)
		}

		evidence := []models.Evidence{{
			Type:      models.EvidenceFile,
			Ref:       resolved,
			Summary:   fmt.Sprintf("wrote %d bytes", len(content)),
			CreatedAt: time.Now().UTC(),
		}}
		return map[string]any{"path": resolved, "bytes": len(content)}, evidence, nil
	}
}

func listHandler(config Config) adapters.CoreHandler {
	return func(_ context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		raw, _ := args["path"].(string)
		resolved, err := policy.ResolveInSandbox(raw, config.SandboxRoots)
		if err != nil {
			return nil, nil, err
		}

		dirEntries, err := os.ReadDir(resolved)
		if err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, fmt.Sprintf("list %s", raw), err)
		}

		entries := make([]any, 0, len(dirEntries))
		names := make([]string, 0, len(dirEntries))
		for _, e := range dirEntries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			full := filepath.Join(resolved, name)
			info, err := os.Stat(full)
			if err != nil {
				continue
			}
			entryType := "file"
			if info.IsDir() {
				entryType = "dir"
			}
			entries = append(entries, map[string]any{
				"name": name,
				"type": entryType,
				"size": info.Size(),
			})
		}
		return map[string]any{"entries": entries}, nil, nil
	}
}
