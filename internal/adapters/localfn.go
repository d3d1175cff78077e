package adapters

import (
	"context"
	"fmt"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// LocalFunc is the callable shape a local-fn tool carries in its Impl.
// Discovery wraps interpreted entry modules into this signature.
type LocalFunc func(ctx context.Context, input map[string]any) (any, error)

// LocalInvoker is the interface form; programmatically registered local
// tools may implement it instead of providing a bare function.
type LocalInvoker interface {
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// LocalFnAdapter executes in-process functions. It accepts both a bare
// result and a { result, evidence } envelope, and wraps primitive results
// as { output: <value> } so they can satisfy object output schemas.
type LocalFnAdapter struct{}

// NewLocalFnAdapter creates the adapter.
func NewLocalFnAdapter() *LocalFnAdapter {
	return &LocalFnAdapter{}
}

func (a *LocalFnAdapter) Kind() models.ToolKind {
	return models.KindLocalFn
}

func (a *LocalFnAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, _ models.ExecContext) (*Invocation, error) {
	fn, err := localCallable(spec)
	if err != nil {
		return nil, err
	}

	raw, err := fn(ctx, args)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("local function %s failed", spec.Name), err)
	}
	return normalizeLocalResult(raw), nil
}

func localCallable(spec *models.ToolSpec) (LocalFunc, error) {
	switch impl := spec.Impl.(type) {
	case LocalFunc:
		return impl, nil
	case func(ctx context.Context, input map[string]any) (any, error):
		return impl, nil
	case LocalInvoker:
		return impl.Invoke, nil
	case nil:
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("tool %s has no local function attached", spec.Name), nil)
	default:
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("tool %s impl is %T, not a local function", spec.Name, spec.Impl), nil)
	}
}

// normalizeLocalResult applies the return-shape rules: a map carrying a
// "result" key is treated as an envelope (with optional evidence), other
// maps pass through, and primitives are wrapped as { output: value }.
func normalizeLocalResult(raw any) *Invocation {
	switch v := raw.(type) {
	case map[string]any:
		if inner, ok := v["result"]; ok {
			inv := &Invocation{Result: inner, Raw: raw}
			if list, ok := v["evidence"].([]models.Evidence); ok {
				inv.Evidence = list
			}
			return inv
		}
		return &Invocation{Result: v}
	case nil:
		return &Invocation{Result: map[string]any{}}
	case string, bool, int, int64, float64:
		return &Invocation{Result: map[string]any{"output": v}, Raw: raw}
	default:
		return &Invocation{Result: v}
	}
}
