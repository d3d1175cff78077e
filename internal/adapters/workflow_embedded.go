package adapters

import (
	"context"
	"fmt"

	"github.com/haasonsaas/toolhub/internal/workflow"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// WorkflowEmbeddedAdapter runs workflows on the in-process engine. The
// manager lazily starts the engine on first invoke and keeps one internal
// id per tool name.
type WorkflowEmbeddedAdapter struct {
	manager *workflow.Manager
}

// NewWorkflowEmbeddedAdapter creates the adapter over a workflow manager.
func NewWorkflowEmbeddedAdapter(manager *workflow.Manager) *WorkflowEmbeddedAdapter {
	return &WorkflowEmbeddedAdapter{manager: manager}
}

func (a *WorkflowEmbeddedAdapter) Kind() models.ToolKind {
	return models.KindWorkflow
}

// Manager exposes the underlying workflow manager for discovery sync.
func (a *WorkflowEmbeddedAdapter) Manager() *workflow.Manager {
	return a.manager
}

func (a *WorkflowEmbeddedAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, _ models.ExecContext) (*Invocation, error) {
	def, ok := spec.Impl.(*workflow.Definition)
	if !ok {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("tool %s has no workflow definition attached", spec.Name), nil)
	}

	result, err := a.manager.Execute(ctx, spec.Name, def, args)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("workflow %s failed", spec.Name), err)
	}
	return &Invocation{Result: result}, nil
}
