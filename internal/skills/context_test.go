package skills

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/toolhub/pkg/models"
)

func testDefinition(allowed []string) *Definition {
	return &Definition{
		Frontmatter: Frontmatter{
			Name:         "test-skill",
			Description:  "test",
			AllowedTools: allowed,
		},
	}
}

func TestContextInvokeToolGating(t *testing.T) {
	var invoked []string
	invoke := func(_ context.Context, toolName string, _ map[string]any) (*models.ToolResult, error) {
		invoked = append(invoked, toolName)
		return &models.ToolResult{OK: true}, nil
	}

	c := NewContext(testDefinition([]string{"fs/readText"}), invoke)

	if _, err := c.InvokeTool(context.Background(), "fs/readText", nil); err != nil {
		t.Fatalf("allowed tool: %v", err)
	}

	_, err := c.InvokeTool(context.Background(), "http/fetchText", nil)
	if err == nil {
		t.Fatal("disallowed tool should be refused")
	}
	var toolErr *models.ToolError
	if !errors.As(err, &toolErr) || toolErr.Kind != models.ErrPolicyDenied {
		t.Errorf("error = %v", err)
	}

	if len(invoked) != 1 || invoked[0] != "fs/readText" {
		t.Errorf("invoked = %v", invoked)
	}
}

func TestContextEmptyAllowListPermitsAll(t *testing.T) {
	invoke := func(_ context.Context, _ string, _ map[string]any) (*models.ToolResult, error) {
		return &models.ToolResult{OK: true}, nil
	}
	c := NewContext(testDefinition(nil), invoke)
	if _, err := c.InvokeTool(context.Background(), "anything", nil); err != nil {
		t.Errorf("empty allow list should permit all tools: %v", err)
	}
}

func TestContextNilInvokerRefuses(t *testing.T) {
	c := NewContext(testDefinition(nil), nil)
	if _, err := c.InvokeTool(context.Background(), "fs/readText", nil); err == nil {
		t.Error("nil invoker should refuse")
	}
}

func TestContextReadResource(t *testing.T) {
	dir := writeSkillDir(t, sampleManifest, map[string]string{
		"reference.md": "# Reference notes",
	})
	def, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	c := NewContext(def, nil)
	content, err := c.ReadResource("reference.md")
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if content != "# Reference notes" {
		t.Errorf("content = %q", content)
	}

	if _, err := c.ReadResource("../outside.md"); err == nil {
		t.Error("undeclared path should be refused")
	}
}
