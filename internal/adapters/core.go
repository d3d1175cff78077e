package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// CoreHandler is one built-in tool implementation. Returned evidence is
// merged into the pipeline's evidence set.
type CoreHandler func(ctx context.Context, args map[string]any, execCtx models.ExecContext) (any, []models.Evidence, error)

// CoreAdapter dispatches to a handler table keyed by tool name. Built-ins
// register a spec alongside their handler so discovery re-scans can
// re-register them without reloading anything.
type CoreAdapter struct {
	mu       sync.RWMutex
	handlers map[string]CoreHandler
	specs    []*models.ToolSpec
}

// NewCoreAdapter creates an empty core adapter.
func NewCoreAdapter() *CoreAdapter {
	return &CoreAdapter{handlers: make(map[string]CoreHandler)}
}

func (a *CoreAdapter) Kind() models.ToolKind {
	return models.KindCore
}

// RegisterTool attaches a handler under the spec's name. Re-registration
// replaces the handler and spec.
func (a *CoreAdapter) RegisterTool(spec *models.ToolSpec, handler CoreHandler) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return models.NewToolError(models.ErrValidation,
			fmt.Sprintf("tool %s: handler is required", spec.Name), nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.handlers[spec.Name]; !exists {
		a.specs = append(a.specs, spec.Clone())
	} else {
		for i, s := range a.specs {
			if s.Name == spec.Name {
				a.specs[i] = spec.Clone()
				break
			}
		}
	}
	a.handlers[spec.Name] = handler
	return nil
}

// ListTools returns the registered built-in specs.
func (a *CoreAdapter) ListTools(context.Context) ([]*models.ToolSpec, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*models.ToolSpec, 0, len(a.specs))
	for _, spec := range a.specs {
		out = append(out, spec.Clone())
	}
	return out, nil
}

// Names returns the built-in tool names. Discovery re-scans preserve
// these when clearing the registry.
func (a *CoreAdapter) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.specs))
	for _, spec := range a.specs {
		names = append(names, spec.Name)
	}
	return names
}

func (a *CoreAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*Invocation, error) {
	a.mu.RLock()
	handler, ok := a.handlers[spec.Name]
	a.mu.RUnlock()
	if !ok {
		return nil, models.NewToolError(models.ErrToolNotFound,
			fmt.Sprintf("no core handler for %s", spec.Name), nil)
	}

	result, evidence, err := handler(ctx, args, execCtx)
	if err != nil {
		return nil, err
	}
	return &Invocation{Result: result, Evidence: evidence}, nil
}
