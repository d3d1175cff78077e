package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haasonsaas/toolhub/internal/mcp"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// RPCToolAdapter fronts MCP tool servers. Each distinct server config
// gets one lazily connected client; stdio servers therefore own at most
// one child process.
type RPCToolAdapter struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*mcp.Client // server ID -> client
}

// NewRPCToolAdapter creates the adapter.
func NewRPCToolAdapter(logger *slog.Logger) *RPCToolAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCToolAdapter{
		logger:  logger,
		clients: make(map[string]*mcp.Client),
	}
}

func (a *RPCToolAdapter) Kind() models.ToolKind {
	return models.KindRPCTool
}

// ListServerTools connects to the server and converts its tool list to
// rpc-tool specs named "<namespace>/<toolName>".
func (a *RPCToolAdapter) ListServerTools(ctx context.Context, cfg *mcp.ServerConfig, namespace string) ([]*models.ToolSpec, error) {
	client, err := a.clientFor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var specs []*models.ToolSpec
	for _, tool := range client.Tools() {
		inputSchema := map[string]any{"type": "object"}
		if len(tool.InputSchema) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(tool.InputSchema, &parsed); err == nil {
				inputSchema = parsed
			}
		}
		specs = append(specs, &models.ToolSpec{
			Name:         namespace + "/" + tool.Name,
			Version:      "1.0.0",
			Kind:         models.KindRPCTool,
			Description:  tool.Description,
			Capabilities: []models.Capability{models.CapNetwork},
			InputSchema:  inputSchema,
			OutputSchema: map[string]any{"type": "object"},
			ResourceID:   cfg.ID,
			Impl:         cfg,
		})
	}
	return specs, nil
}

func (a *RPCToolAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, _ models.ExecContext) (*Invocation, error) {
	cfg, ok := spec.Impl.(*mcp.ServerConfig)
	if !ok {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("tool %s has no MCP server config", spec.Name), nil)
	}

	client, err := a.clientFor(ctx, cfg)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("connect to MCP server %s", cfg.ID), err)
	}

	// The server-side tool name is the leaf of the hub name.
	toolName := spec.Name
	if idx := strings.LastIndex(toolName, "/"); idx >= 0 {
		toolName = toolName[idx+1:]
	}

	result, err := client.CallTool(ctx, toolName, args)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("call %s on MCP server %s", toolName, cfg.ID), err)
	}
	if result.IsError {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("MCP tool %s reported an error", toolName),
			map[string]any{"content": contentText(result.Content)})
	}

	return &Invocation{Result: contentToResult(result.Content), Raw: result}, nil
}

// Shutdown closes all server connections.
func (a *RPCToolAdapter) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, client := range a.clients {
		if err := client.Close(); err != nil {
			a.logger.Warn("closing MCP client", "server", id, "error", err)
		}
		delete(a.clients, id)
	}
}

func (a *RPCToolAdapter) clientFor(ctx context.Context, cfg *mcp.ServerConfig) (*mcp.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if client, ok := a.clients[cfg.ID]; ok && client.Connected() {
		return client, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := mcp.NewClient(cfg, a.logger)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	a.clients[cfg.ID] = client
	return client, nil
}

// contentToResult maps an MCP content array to a result object. A single
// text item that parses as a JSON object becomes that object; anything
// else is returned under "content".
func contentToResult(content []mcp.ToolResultContent) any {
	if len(content) == 1 && content[0].Type == "text" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(content[0].Text), &parsed); err == nil {
			return parsed
		}
		return map[string]any{"output": content[0].Text}
	}

	items := make([]any, 0, len(content))
	for _, c := range content {
		item := map[string]any{"type": c.Type}
		if c.Text != "" {
			item["text"] = c.Text
		}
		if c.Data != "" {
			item["data"] = c.Data
		}
		if c.MimeType != "" {
			item["mimeType"] = c.MimeType
		}
		items = append(items, item)
	}
	return map[string]any{"content": items}
}

func contentText(content []mcp.ToolResultContent) string {
	var parts []string
	for _, c := range content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
