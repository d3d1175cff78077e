package models

import "time"

// Budget limits a single invocation.
type Budget struct {
	// TimeoutMs overrides the per-tool timeout for this call.
	TimeoutMs int `json:"timeoutMs,omitempty"`

	// MaxRetries overrides the retry allowance for this call.
	MaxRetries int `json:"maxRetries,omitempty"`

	// MaxToolCalls bounds sub-tool invocations (skill handlers).
	MaxToolCalls int `json:"maxToolCalls,omitempty"`
}

// ExecContext carries per-call authority and budget through the pipeline.
type ExecContext struct {
	RequestID string `json:"requestId"`
	TaskID    string `json:"taskId"`
	TraceID   string `json:"traceId,omitempty"`
	UserID    string `json:"userId,omitempty"`

	// Permissions is the capability set granted to this call.
	Permissions []Capability `json:"permissions"`

	// Budget is optional; nil means per-tool and global defaults apply.
	Budget *Budget `json:"budget,omitempty"`

	// DryRun halts the pipeline before adapter invocation and returns a
	// synthetic success result.
	DryRun bool `json:"dryRun,omitempty"`
}

// HasPermission reports whether the context grants the given capability.
func (c *ExecContext) HasPermission(cap Capability) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == cap {
			return true
		}
	}
	return false
}

// Timeout returns the budget timeout as a duration, or zero when unset.
func (c *ExecContext) Timeout() time.Duration {
	if c == nil || c.Budget == nil || c.Budget.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.Budget.TimeoutMs) * time.Millisecond
}

// ToolIntent is what a caller asks the hub to invoke.
type ToolIntent struct {
	// Tool matches a registered ToolSpec.Name.
	Tool string `json:"tool"`

	// Args is the untrusted argument object; validated and enriched by the
	// pipeline before any adapter sees it.
	Args map[string]any `json:"args"`

	// Purpose is a free-form audit string recorded with events.
	Purpose string `json:"purpose,omitempty"`

	// IdempotencyKey dedupes workflow invocations. Empty means the default
	// "requestId:taskId:toolName" key.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// EffectiveIdempotencyKey returns the explicit key or the default
// requestId:taskId:toolName composite.
func (i *ToolIntent) EffectiveIdempotencyKey(ctx *ExecContext) string {
	if i.IdempotencyKey != "" {
		return i.IdempotencyKey
	}
	rid, tid := "", ""
	if ctx != nil {
		rid, tid = ctx.RequestID, ctx.TaskID
	}
	return rid + ":" + tid + ":" + i.Tool
}
