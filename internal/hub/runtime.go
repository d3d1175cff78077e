// Package hub assembles the tool execution pipeline and the facade the
// rest of the world calls. The runtime is total: Invoke never returns a
// Go error, every failure becomes a ToolResult with ok=false and a
// tagged error kind.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/backoff"
	"github.com/haasonsaas/toolhub/internal/budget"
	"github.com/haasonsaas/toolhub/internal/evidence"
	"github.com/haasonsaas/toolhub/internal/observability"
	"github.com/haasonsaas/toolhub/internal/policy"
	"github.com/haasonsaas/toolhub/internal/registry"
	"github.com/haasonsaas/toolhub/internal/schema"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// maxListedNames bounds the available-tool list attached to a
// TOOL_NOT_FOUND failure.
const maxListedNames = 25

// Runtime executes the invocation pipeline: resolve, validate input,
// enrich defaults, policy gate, budget admission, execute under
// breaker+retry+timeout, validate output, build evidence, audit.
type Runtime struct {
	registry  *registry.Registry
	validator *schema.Validator
	policy    *policy.Engine
	budget    *budget.Manager
	evidence  *evidence.Builder
	events    *observability.EventLog
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *observability.Logger

	adapters map[models.ToolKind]adapters.Adapter

	now func() time.Time
}

// RuntimeDeps carries the wired subsystems. All fields are required
// except Tracer, which may be nil when tracing is disabled.
type RuntimeDeps struct {
	Registry  *registry.Registry
	Validator *schema.Validator
	Policy    *policy.Engine
	Budget    *budget.Manager
	Evidence  *evidence.Builder
	Events    *observability.EventLog
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Logger    *observability.Logger
	Adapters  map[models.ToolKind]adapters.Adapter
}

// NewRuntime wires the pipeline.
func NewRuntime(deps RuntimeDeps) *Runtime {
	return &Runtime{
		registry:  deps.Registry,
		validator: deps.Validator,
		policy:    deps.Policy,
		budget:    deps.Budget,
		evidence:  deps.Evidence,
		events:    deps.Events,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
		adapters:  deps.Adapters,
		now:       time.Now,
	}
}

// WithClock overrides the pipeline clock (tests).
func (r *Runtime) WithClock(now func() time.Time) *Runtime {
	r.now = now
	return r
}

// call carries the per-invocation state threaded through the steps.
// args starts as the intent's raw arguments and is replaced by the
// enriched copy once validation fills defaults.
type call struct {
	intent  *models.ToolIntent
	execCtx *models.ExecContext
	args    map[string]any
	start   time.Time
	spanID  string
}

// Invoke runs the full pipeline. All failure paths return a ToolResult
// with ok=false; nothing escapes as a Go error or panic.
func (r *Runtime) Invoke(ctx context.Context, intent *models.ToolIntent, execCtx *models.ExecContext) (result *models.ToolResult) {
	if execCtx == nil {
		execCtx = &models.ExecContext{}
	}
	c := &call{intent: intent, execCtx: execCtx, args: intent.Args, start: r.now()}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "panic in tool invocation", "tool", intent.Tool, "panic", rec)
			result = r.fail(ctx, c, nil, models.NewToolError(models.ErrUpstream,
				fmt.Sprintf("internal fault invoking %s", intent.Tool), map[string]any{"panic": fmt.Sprint(rec)}))
		}
	}()

	ctx = observability.WithRequestID(ctx, execCtx.RequestID)
	ctx = observability.WithTaskID(ctx, execCtx.TaskID)
	ctx = observability.WithToolName(ctx, intent.Tool)

	if r.tracer != nil {
		span := r.tracer.StartSpan(observability.SpanOptions{
			Name:    "tool.invoke",
			TraceID: execCtx.TraceID,
			Attributes: map[string]any{
				"tool":      intent.Tool,
				"requestId": execCtx.RequestID,
				"taskId":    execCtx.TaskID,
				"dryRun":    execCtx.DryRun,
			},
		})
		c.spanID = span.SpanID
	}

	r.emit(observability.EventToolCalled, c, map[string]any{"purpose": intent.Purpose})

	// Step 1: resolve.
	spec, ok := r.registry.Get(intent.Tool)
	if !ok {
		names := r.registry.Names()
		truncated := false
		if len(names) > maxListedNames {
			names = names[:maxListedNames]
			truncated = true
		}
		return r.fail(ctx, c, nil, models.NewToolError(models.ErrToolNotFound,
			fmt.Sprintf("tool %q is not registered", intent.Tool),
			map[string]any{"available": names, "truncated": truncated}))
	}

	// Steps 2 and 3: validate input and enrich defaults. The validator
	// coerces types, fills defaults, and strips unknown properties on
	// failure in one pass.
	args := intent.Args
	if args == nil {
		args = map[string]any{}
	}
	inputResult, err := r.validator.Validate(spec.InputSchema, args)
	if err != nil {
		return r.fail(ctx, c, spec, models.WrapError(models.ErrInputSchemaInvalid,
			fmt.Sprintf("tool %s: input schema is unusable", spec.Name), err))
	}
	if !inputResult.Valid {
		return r.fail(ctx, c, spec, models.NewToolError(models.ErrInputSchemaInvalid,
			fmt.Sprintf("tool %s: arguments do not satisfy the input schema", spec.Name),
			map[string]any{"errors": inputResult.Errors}))
	}
	enriched, ok := inputResult.Data.(map[string]any)
	if !ok {
		enriched = map[string]any{}
	}
	c.args = enriched

	// Step 4: policy gate.
	if err := r.policy.Enforce(spec, enriched, execCtx); err != nil {
		toolErr := models.ClassifyError(err)
		reason := toolErr.Message
		r.emit(observability.EventPolicyDenied, c, map[string]any{"reason": reason})
		r.metrics.RecordPolicyDenied(spec.Name, reason)
		return r.fail(ctx, c, spec, toolErr)
	}

	// Dry-run halts before budget admission and execution.
	if execCtx.DryRun {
		return r.succeed(ctx, c, spec, map[string]any{
			"dryRun":       true,
			"tool":         spec.Name,
			"kind":         string(spec.Kind),
			"args":         enriched,
			"capabilities": spec.Capabilities,
		}, nil, nil)
	}

	// Step 5: budget admission.
	if err := r.budget.Admit(spec.Name); err != nil {
		return r.fail(ctx, c, spec, models.ClassifyError(err))
	}

	// Step 6: execute under breaker, retry loop, and a single overall
	// timeout.
	adapter, ok := r.adapters[spec.Kind]
	if !ok {
		return r.fail(ctx, c, spec, models.NewToolError(models.ErrToolNotFound,
			fmt.Sprintf("no adapter for kind %q", spec.Kind), nil))
	}

	timeout := r.budget.GetTimeout(spec.Name, execCtx.Timeout())
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	callCtx = withExecContext(callCtx, execCtx)
	if intent.IdempotencyKey != "" {
		callCtx = adapters.WithIdempotencyKey(callCtx, intent.IdempotencyKey)
	}

	maxRetries := 0
	if execCtx.Budget != nil && execCtx.Budget.MaxRetries > 0 {
		maxRetries = execCtx.Budget.MaxRetries
	}

	inv, err := backoff.WithRetry(callCtx, backoff.Options{
		MaxRetries: maxRetries,
		OnRetry: func(retryErr error, attempt int) {
			r.emit(observability.EventRetry, c, map[string]any{
				"attempt": attempt,
				"error":   retryErr.Error(),
			})
			r.metrics.RecordRetry(spec.Name)
		},
	}, func(int) (*adapters.Invocation, error) {
		out, execErr := r.budget.Execute(spec.Name, func() (any, error) {
			return adapter.Invoke(callCtx, spec, enriched, *execCtx)
		})
		if execErr != nil {
			return nil, execErr
		}
		return out.(*adapters.Invocation), nil
	})
	if err != nil {
		toolErr := models.ClassifyError(err)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			toolErr = models.WrapError(models.ErrTimeout,
				fmt.Sprintf("tool %s exceeded its %s timeout", spec.Name, timeout), err)
		}
		return r.fail(ctx, c, spec, toolErr)
	}

	// Step 7: validate output.
	outputResult, err := r.validator.Validate(spec.OutputSchema, inv.Result)
	if err != nil {
		return r.fail(ctx, c, spec, models.WrapError(models.ErrOutputSchemaInvalid,
			fmt.Sprintf("tool %s: output schema is unusable", spec.Name), err))
	}
	if !outputResult.Valid {
		return r.fail(ctx, c, spec, models.NewToolError(models.ErrOutputSchemaInvalid,
			fmt.Sprintf("tool %s: result does not satisfy the output schema", spec.Name),
			map[string]any{"errors": outputResult.Errors}))
	}

	// Steps 8 and 9 happen in succeed.
	return r.succeed(ctx, c, spec, outputResult.Data, inv.Evidence, inv.Raw)
}

func (r *Runtime) succeed(ctx context.Context, c *call, spec *models.ToolSpec, result any, adapterEvidence []models.Evidence, raw any) *models.ToolResult {
	duration := r.now().Sub(c.start)
	records := r.evidence.Build(spec, c.args, result, adapterEvidence, duration)

	r.emit(observability.EventToolResult, c, map[string]any{"ok": true, "durationMs": duration.Milliseconds()})
	r.metrics.RecordInvocation(spec.Name, true, float64(duration.Milliseconds()))
	r.endSpan(c, "ok")
	r.logger.Debug(ctx, "tool invocation completed", "tool", spec.Name, "durationMs", duration.Milliseconds())

	return &models.ToolResult{OK: true, Result: result, Evidence: records, Raw: raw}
}

// fail closes out the pipeline for any failure path. spec may be nil
// when resolution itself failed.
func (r *Runtime) fail(ctx context.Context, c *call, spec *models.ToolSpec, toolErr *models.ToolError) *models.ToolResult {
	duration := r.now().Sub(c.start)
	name := c.intent.Tool
	if spec != nil {
		name = spec.Name
	}

	r.emit(observability.EventToolResult, c, map[string]any{
		"ok":         false,
		"errorKind":  string(toolErr.Kind),
		"durationMs": duration.Milliseconds(),
	})
	r.metrics.RecordInvocation(name, false, float64(duration.Milliseconds()))
	r.endSpan(c, "error:"+string(toolErr.Kind))
	r.logger.Warn(ctx, "tool invocation failed", "tool", name, "kind", string(toolErr.Kind), "error", toolErr.Message)

	return &models.ToolResult{OK: false, Error: toolErr, Evidence: []models.Evidence{}}
}

func (r *Runtime) emit(eventType observability.EventType, c *call, fields map[string]any) {
	r.events.Append(observability.Event{
		Type:      eventType,
		Timestamp: r.now(),
		RequestID: c.execCtx.RequestID,
		TaskID:    c.execCtx.TaskID,
		ToolName:  c.intent.Tool,
		TraceID:   c.execCtx.TraceID,
		Fields:    fields,
	})
}

func (r *Runtime) endSpan(c *call, status string) {
	if r.tracer != nil && c.spanID != "" {
		r.tracer.EndSpan(c.spanID, status)
	}
}
