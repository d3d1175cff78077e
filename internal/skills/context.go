package skills

import (
	"context"
	"fmt"
	"os"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// ToolInvoker dispatches a nested tool call on behalf of a skill.
type ToolInvoker func(ctx context.Context, toolName string, args map[string]any) (*models.ToolResult, error)

// Context is the execution-time view a skill handler gets: resource
// access scoped to the skill directory and tool invocation gated by the
// manifest's allowed-tools list.
type Context struct {
	def    *Definition
	invoke ToolInvoker
}

// NewContext builds a skill context. invoke may be nil for skills that
// never call tools.
func NewContext(def *Definition, invoke ToolInvoker) *Context {
	return &Context{def: def, invoke: invoke}
}

// Definition returns the underlying skill.
func (c *Context) Definition() *Definition {
	return c.def
}

// ReadResource returns the content of a bundled resource by its relative
// path. Only files discovered at load time are readable, so a skill
// cannot be used to read arbitrary paths.
func (c *Context) ReadResource(relativePath string) (string, error) {
	resource, ok := c.def.Resource(relativePath)
	if !ok {
		return "", fmt.Errorf("skill %s has no resource %q", c.def.Frontmatter.Name, relativePath)
	}
	data, err := os.ReadFile(resource.AbsolutePath)
	if err != nil {
		return "", fmt.Errorf("read resource %q: %w", relativePath, err)
	}
	return string(data), nil
}

// GetResourcesByType lists bundled resources of one type.
func (c *Context) GetResourcesByType(resourceType ResourceType) []Resource {
	return c.def.ResourcesByType(resourceType)
}

// InvokeTool calls another tool through the hub. When the manifest lists
// allowed-tools, anything outside that list is refused.
func (c *Context) InvokeTool(ctx context.Context, toolName string, args map[string]any) (*models.ToolResult, error) {
	if c.invoke == nil {
		return nil, models.NewToolError(models.ErrPolicyDenied,
			fmt.Sprintf("skill %s cannot invoke tools", c.def.Frontmatter.Name), nil)
	}
	if !c.toolAllowed(toolName) {
		return nil, models.NewToolError(models.ErrPolicyDenied,
			fmt.Sprintf("skill %s is not allowed to invoke %s", c.def.Frontmatter.Name, toolName),
			map[string]any{"allowedTools": c.def.Frontmatter.AllowedTools})
	}
	return c.invoke(ctx, toolName, args)
}

func (c *Context) toolAllowed(toolName string) bool {
	allowed := c.def.Frontmatter.AllowedTools
	if len(allowed) == 0 {
		return true
	}
	for _, name := range allowed {
		if name == toolName {
			return true
		}
	}
	return false
}
