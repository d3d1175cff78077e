// Package adapters contains one adapter per tool kind. An adapter turns a
// normalized invocation (spec, args, execution context) into a kind-specific
// call: a built-in handler, a local function, an MCP server, a workflow
// engine, an image pipeline, or a skill bundle.
package adapters

import (
	"context"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Invocation is what an adapter hands back to the pipeline. Result is the
// payload validated against the tool's output schema; Evidence and Raw are
// passed through untouched.
type Invocation struct {
	Result   any
	Evidence []models.Evidence
	Raw      any
}

// Adapter executes tools of one kind. Invoke may return an error; the
// runtime classifies and normalizes it. Adapters never mutate the registry
// and never log raw argument values.
type Adapter interface {
	Kind() models.ToolKind
	Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*Invocation, error)
}

// Lister is implemented by adapters whose back-end can enumerate tools
// (MCP servers, the core handler table).
type Lister interface {
	ListTools(ctx context.Context) ([]*models.ToolSpec, error)
}
