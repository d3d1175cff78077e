package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/toolhub/pkg/models"
)

func coreSpec(name string) *models.ToolSpec {
	return &models.ToolSpec{
		Name:         name,
		Version:      "1.0.0",
		Kind:         models.KindCore,
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
}

func TestCoreAdapterDispatch(t *testing.T) {
	adapter := NewCoreAdapter()
	spec := coreSpec("util/echo")
	err := adapter.RegisterTool(spec, func(_ context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		return map[string]any{"echo": args["value"]}, []models.Evidence{{Type: models.EvidenceText, Ref: "echo", Summary: "echoed"}}, nil
	})
	if err != nil {
		t.Fatalf("RegisterTool: %v", err)
	}

	inv, err := adapter.Invoke(context.Background(), spec, map[string]any{"value": "hi"}, models.ExecContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if inv.Result.(map[string]any)["echo"] != "hi" {
		t.Errorf("result = %v", inv.Result)
	}
	if len(inv.Evidence) != 1 || inv.Evidence[0].Ref != "echo" {
		t.Errorf("evidence = %v", inv.Evidence)
	}
}

func TestCoreAdapterUnknownTool(t *testing.T) {
	adapter := NewCoreAdapter()
	_, err := adapter.Invoke(context.Background(), coreSpec("util/missing"), nil, models.ExecContext{})
	var toolErr *models.ToolError
	if !errors.As(err, &toolErr) || toolErr.Kind != models.ErrToolNotFound {
		t.Errorf("error = %v", err)
	}
}

func TestCoreAdapterRejectsNilHandler(t *testing.T) {
	adapter := NewCoreAdapter()
	if err := adapter.RegisterTool(coreSpec("util/bad"), nil); err == nil {
		t.Error("nil handler should be rejected")
	}
}

func TestCoreAdapterListAndNames(t *testing.T) {
	adapter := NewCoreAdapter()
	noop := func(_ context.Context, _ map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		return map[string]any{}, nil, nil
	}
	adapter.RegisterTool(coreSpec("fs/readText"), noop)
	adapter.RegisterTool(coreSpec("http/fetchText"), noop)

	tools, _ := adapter.ListTools(context.Background())
	if len(tools) != 2 {
		t.Errorf("tools = %d", len(tools))
	}
	names := adapter.Names()
	if len(names) != 2 || names[0] != "fs/readText" {
		t.Errorf("names = %v", names)
	}

	// Re-registration replaces without duplicating.
	adapter.RegisterTool(coreSpec("fs/readText"), noop)
	if len(adapter.Names()) != 2 {
		t.Errorf("re-registration should not duplicate: %v", adapter.Names())
	}
}

func TestLocalFnResultShapes(t *testing.T) {
	adapter := NewLocalFnAdapter()
	ctx := context.Background()
	execCtx := models.ExecContext{}

	spec := func(fn LocalFunc) *models.ToolSpec {
		s := coreSpec("local/fn")
		s.Kind = models.KindLocalFn
		s.Impl = fn
		return s
	}

	t.Run("primitive wrapped as output", func(t *testing.T) {
		inv, err := adapter.Invoke(ctx, spec(func(context.Context, map[string]any) (any, error) {
			return "plain string", nil
		}), nil, execCtx)
		if err != nil {
			t.Fatal(err)
		}
		if inv.Result.(map[string]any)["output"] != "plain string" {
			t.Errorf("result = %v", inv.Result)
		}
	})

	t.Run("result envelope unwrapped", func(t *testing.T) {
		inv, err := adapter.Invoke(ctx, spec(func(context.Context, map[string]any) (any, error) {
			return map[string]any{
				"result":   map[string]any{"answer": 42},
				"evidence": []models.Evidence{{Type: models.EvidenceText, Ref: "calc", Summary: "computed"}},
			}, nil
		}), nil, execCtx)
		if err != nil {
			t.Fatal(err)
		}
		if inv.Result.(map[string]any)["answer"] != 42 {
			t.Errorf("result = %v", inv.Result)
		}
		if len(inv.Evidence) != 1 {
			t.Errorf("evidence = %v", inv.Evidence)
		}
	})

	t.Run("plain map passes through", func(t *testing.T) {
		inv, err := adapter.Invoke(ctx, spec(func(context.Context, map[string]any) (any, error) {
			return map[string]any{"answer": 42}, nil
		}), nil, execCtx)
		if err != nil {
			t.Fatal(err)
		}
		if inv.Result.(map[string]any)["answer"] != 42 {
			t.Errorf("result = %v", inv.Result)
		}
	})

	t.Run("error becomes upstream", func(t *testing.T) {
		_, err := adapter.Invoke(ctx, spec(func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("broken")
		}), nil, execCtx)
		var toolErr *models.ToolError
		if !errors.As(err, &toolErr) || toolErr.Kind != models.ErrUpstream {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("missing impl", func(t *testing.T) {
		s := coreSpec("local/none")
		s.Kind = models.KindLocalFn
		if _, err := adapter.Invoke(ctx, s, nil, execCtx); err == nil {
			t.Error("nil impl should error")
		}
	})
}
