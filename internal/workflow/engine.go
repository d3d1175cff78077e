package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Engine is the surface the embedded adapter drives. Implementations may
// run in process or front an external engine.
type Engine interface {
	// Start brings the engine up. Safe to call once; the adapter
	// serializes startup.
	Start(ctx context.Context) error

	// Import registers or updates a definition and returns the
	// engine-internal id. Matching is by definition ID first, then by
	// name, so re-imports update in place.
	Import(ctx context.Context, def *Definition) (string, error)

	// Remove deletes a workflow by internal id.
	Remove(ctx context.Context, internalID string) error

	// Execute runs a workflow to completion.
	Execute(ctx context.Context, internalID string, input map[string]any) (map[string]any, error)

	// List returns the internal ids of all imported workflows.
	List(ctx context.Context) ([]string, error)

	// Stop shuts the engine down.
	Stop(ctx context.Context) error
}

// ToolInvoker dispatches a node's tool call back through the hub.
type ToolInvoker func(ctx context.Context, toolName string, args map[string]any) (*models.ToolResult, error)

type storedWorkflow struct {
	internalID string
	def        *Definition
}

// InProcessEngine executes workflow nodes sequentially inside the hub
// process. Node results are addressable from later nodes' args.
type InProcessEngine struct {
	invoke ToolInvoker

	mu        sync.RWMutex
	started   bool
	workflows map[string]*storedWorkflow // internal id -> workflow
}

// NewInProcessEngine creates an engine that dispatches node tool calls
// through invoke.
func NewInProcessEngine(invoke ToolInvoker) *InProcessEngine {
	return &InProcessEngine{
		invoke:    invoke,
		workflows: make(map[string]*storedWorkflow),
	}
}

func (e *InProcessEngine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
	return nil
}

func (e *InProcessEngine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = false
	return nil
}

func (e *InProcessEngine) Import(_ context.Context, def *Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return "", fmt.Errorf("engine not started")
	}

	// Update in place when a workflow with the same external ID or,
	// failing that, the same name is already imported.
	for internalID, stored := range e.workflows {
		if def.ID != "" && stored.def.ID == def.ID {
			stored.def = def
			return internalID, nil
		}
	}
	for internalID, stored := range e.workflows {
		if def.Name != "" && stored.def.Name == def.Name {
			stored.def = def
			return internalID, nil
		}
	}

	internalID := uuid.NewString()
	e.workflows[internalID] = &storedWorkflow{internalID: internalID, def: def}
	return internalID, nil
}

func (e *InProcessEngine) Remove(_ context.Context, internalID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workflows[internalID]; !ok {
		return fmt.Errorf("workflow not found: %s", internalID)
	}
	delete(e.workflows, internalID)
	return nil
}

func (e *InProcessEngine) List(context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.workflows))
	for id := range e.workflows {
		ids = append(ids, id)
	}
	return ids, nil
}

// Execute runs the nodes in order. Each node's args are resolved against
// the workflow input and earlier node outputs, then dispatched through
// the invoker. The final payload carries every node's output plus the
// last node's output under "output".
func (e *InProcessEngine) Execute(ctx context.Context, internalID string, input map[string]any) (map[string]any, error) {
	e.mu.RLock()
	stored, ok := e.workflows[internalID]
	started := e.started
	e.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("engine not started")
	}
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", internalID)
	}

	nodeOutputs := make(map[string]any)
	var lastOutput any

	for i, node := range stored.def.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		args, err := resolveArgs(node.Args, input, nodeOutputs)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeKey(node, i), err)
		}

		result, err := e.invoke(ctx, node.Tool, args)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", nodeKey(node, i), node.Tool, err)
		}
		if !result.OK {
			return nil, fmt.Errorf("node %s (%s) failed: %s", nodeKey(node, i), node.Tool, result.Error.Message)
		}

		lastOutput = result.Result
		nodeOutputs[nodeKey(node, i)] = result.Result
	}

	return map[string]any{
		"nodes":  nodeOutputs,
		"output": lastOutput,
	}, nil
}

func nodeKey(node Node, index int) string {
	if node.ID != "" {
		return node.ID
	}
	return fmt.Sprintf("node%d", index)
}

// resolveArgs substitutes "$input.<key>" and "$nodes.<id>.<key>" string
// values. Non-reference values pass through unchanged.
func resolveArgs(args, input map[string]any, nodeOutputs map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(args))
	for key, value := range args {
		s, ok := value.(string)
		if !ok || !strings.HasPrefix(s, "$") {
			resolved[key] = value
			continue
		}
		parts := strings.Split(s[1:], ".")
		switch {
		case parts[0] == "input":
			v, err := lookupPath(input, parts[1:])
			if err != nil {
				return nil, fmt.Errorf("arg %q: %w", key, err)
			}
			resolved[key] = v
		case parts[0] == "nodes" && len(parts) >= 2:
			output, ok := nodeOutputs[parts[1]]
			if !ok {
				return nil, fmt.Errorf("arg %q references unknown node %q", key, parts[1])
			}
			if len(parts) == 2 {
				resolved[key] = output
				continue
			}
			m, ok := output.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("arg %q: node %q output is not an object", key, parts[1])
			}
			v, err := lookupPath(m, parts[2:])
			if err != nil {
				return nil, fmt.Errorf("arg %q: %w", key, err)
			}
			resolved[key] = v
		default:
			resolved[key] = value
		}
	}
	return resolved, nil
}

func lookupPath(m map[string]any, path []string) (any, error) {
	if len(path) == 0 {
		return m, nil
	}
	var current any = m
	for _, segment := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path segment %q is not an object", segment)
		}
		current, ok = obj[segment]
		if !ok {
			return nil, fmt.Errorf("missing key %q", segment)
		}
	}
	return current, nil
}
