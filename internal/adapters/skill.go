package adapters

import (
	"context"
	"fmt"

	"github.com/haasonsaas/toolhub/internal/skills"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// SkillHandler executes a skill programmatically with resource access and
// gated sub-tool invocation.
type SkillHandler func(ctx context.Context, skillCtx *skills.Context, args map[string]any) (any, error)

// SkillImpl is what a skill tool carries in its Impl: the parsed bundle
// plus an optional handler. Without a handler the adapter returns the
// instruction-only payload for the caller to interpret.
type SkillImpl struct {
	Definition *skills.Definition
	Handler    SkillHandler
}

// SkillAdapter serves skill tools.
type SkillAdapter struct {
	invoke skills.ToolInvoker
}

// NewSkillAdapter creates the adapter. invoke dispatches skill sub-tool
// calls back through the hub; nil disables sub-tool invocation.
func NewSkillAdapter(invoke skills.ToolInvoker) *SkillAdapter {
	return &SkillAdapter{invoke: invoke}
}

func (a *SkillAdapter) Kind() models.ToolKind {
	return models.KindSkill
}

func (a *SkillAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, _ models.ExecContext) (*Invocation, error) {
	impl, ok := spec.Impl.(*SkillImpl)
	if !ok || impl == nil || impl.Definition == nil {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("tool %s has no skill bundle attached", spec.Name), nil)
	}

	if impl.Handler == nil {
		return &Invocation{Result: InstructionPayload(impl.Definition)}, nil
	}

	skillCtx := skills.NewContext(impl.Definition, a.invoke)
	result, err := impl.Handler(ctx, skillCtx, args)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("skill %s failed", spec.Name), err)
	}
	return normalizeLocalResult(result), nil
}

// InstructionPayload is the instruction-only result for skills without a
// handler: everything a caller needs to follow the skill manually.
func InstructionPayload(def *skills.Definition) map[string]any {
	resources := make([]any, 0, len(def.Resources))
	for _, r := range def.Resources {
		resources = append(resources, map[string]any{
			"relativePath": r.RelativePath,
			"type":         string(r.Type),
			"extension":    r.Extension,
		})
	}
	return map[string]any{
		"name":         def.Frontmatter.Name,
		"description":  def.Frontmatter.Description,
		"instructions": def.Instructions,
		"resources":    resources,
		"dirPath":      def.DirPath,
	}
}
