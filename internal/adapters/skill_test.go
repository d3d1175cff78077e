package adapters

import (
	"context"
	"testing"

	"github.com/haasonsaas/toolhub/internal/skills"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func skillSpec(impl *SkillImpl) *models.ToolSpec {
	return &models.ToolSpec{
		Name:         "skill/pdf-report",
		Version:      "1.0.0",
		Kind:         models.KindSkill,
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
		Impl:         impl,
	}
}

func testSkillDefinition() *skills.Definition {
	return &skills.Definition{
		Frontmatter: skills.Frontmatter{
			Name:         "pdf-report",
			Description:  "Build PDF reports",
			AllowedTools: []string{"fs/writeText"},
		},
		Instructions: "Run the render script.",
		Resources: []skills.Resource{
			{RelativePath: "scripts/render.py", Type: skills.ResourceCode, Extension: ".py"},
		},
		DirPath: "/roots/skills/pdf-report",
	}
}

func TestSkillAdapterInstructionOnly(t *testing.T) {
	adapter := NewSkillAdapter(nil)
	inv, err := adapter.Invoke(context.Background(), skillSpec(&SkillImpl{Definition: testSkillDefinition()}), nil, models.ExecContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	result := inv.Result.(map[string]any)
	if result["name"] != "pdf-report" {
		t.Errorf("name = %v", result["name"])
	}
	if result["instructions"] != "Run the render script." {
		t.Errorf("instructions = %v", result["instructions"])
	}
	resources := result["resources"].([]any)
	if len(resources) != 1 || resources[0].(map[string]any)["type"] != "code" {
		t.Errorf("resources = %v", resources)
	}
	if result["dirPath"] != "/roots/skills/pdf-report" {
		t.Errorf("dirPath = %v", result["dirPath"])
	}
}

func TestSkillAdapterHandler(t *testing.T) {
	var subCalls []string
	invoker := func(_ context.Context, toolName string, _ map[string]any) (*models.ToolResult, error) {
		subCalls = append(subCalls, toolName)
		return &models.ToolResult{OK: true, Result: map[string]any{}}, nil
	}

	adapter := NewSkillAdapter(invoker)
	impl := &SkillImpl{
		Definition: testSkillDefinition(),
		Handler: func(ctx context.Context, skillCtx *skills.Context, args map[string]any) (any, error) {
			// Allowed sub-tool works, disallowed is refused.
			if _, err := skillCtx.InvokeTool(ctx, "fs/writeText", nil); err != nil {
				return nil, err
			}
			if _, err := skillCtx.InvokeTool(ctx, "http/fetchText", nil); err == nil {
				t.Error("disallowed sub-tool should be refused")
			}
			return map[string]any{"rendered": true}, nil
		},
	}

	inv, err := adapter.Invoke(context.Background(), skillSpec(impl), map[string]any{}, models.ExecContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if inv.Result.(map[string]any)["rendered"] != true {
		t.Errorf("result = %v", inv.Result)
	}
	if len(subCalls) != 1 || subCalls[0] != "fs/writeText" {
		t.Errorf("sub calls = %v", subCalls)
	}
}

func TestSkillAdapterMissingBundle(t *testing.T) {
	adapter := NewSkillAdapter(nil)
	cases := []struct {
		name string
		impl *SkillImpl
	}{
		{"nil impl", nil},
		{"nil definition", &SkillImpl{}},
	}
	for _, tc := range cases {
		if _, err := adapter.Invoke(context.Background(), skillSpec(tc.impl), nil, models.ExecContext{}); err == nil {
			t.Errorf("%s: missing bundle should error", tc.name)
		}
	}
}
