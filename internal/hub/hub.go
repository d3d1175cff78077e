package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/budget"
	"github.com/haasonsaas/toolhub/internal/builtins"
	"github.com/haasonsaas/toolhub/internal/discovery"
	"github.com/haasonsaas/toolhub/internal/evidence"
	"github.com/haasonsaas/toolhub/internal/jobs"
	"github.com/haasonsaas/toolhub/internal/observability"
	"github.com/haasonsaas/toolhub/internal/policy"
	"github.com/haasonsaas/toolhub/internal/registry"
	"github.com/haasonsaas/toolhub/internal/schema"
	"github.com/haasonsaas/toolhub/internal/workflow"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// Options configures a Hub.
type Options struct {
	// Roots are the initial discovery roots.
	Roots []discovery.Root

	Policy policy.Config
	Budget budget.Config

	// Built-in tool limits. Zero values take the builtins defaults.
	MaxFileBytes int64
	MaxHTTPBytes int64
	HTTPTimeout  time.Duration

	// JobStoreDSN selects the Postgres job store; empty means in-memory.
	JobStoreDSN      string
	JobTTL           time.Duration
	JobSweepInterval time.Duration

	Log   observability.LogConfig
	Trace observability.TraceConfig

	// EventLogCapacity bounds the audit ring. Zero takes the default.
	EventLogCapacity int

	// WatchDebounce is the quiet window for hot reload.
	WatchDebounce time.Duration

	// DefaultPermissions apply to InvokeTool calls that do not name
	// their own capability set.
	DefaultPermissions []models.Capability
}

// ToolMetadata is the listing row for ListToolMetadata.
type ToolMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InvokeOptions tunes a single InvokeTool call. The zero value gets
// generated request/task IDs and the hub's default permissions.
type InvokeOptions struct {
	RequestID      string
	TaskID         string
	TraceID        string
	UserID         string
	Permissions    []models.Capability
	Budget         *models.Budget
	DryRun         bool
	IdempotencyKey string
	Purpose        string
}

// Hub is the tool execution hub facade: discovery, registry, and the
// invocation pipeline behind one surface.
type Hub struct {
	opts   Options
	logger *observability.Logger

	registry *registry.Registry
	events   *observability.EventLog
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	policy   *policy.Engine
	budget   *budget.Manager
	jobs     *jobs.Manager

	core      *adapters.CoreAdapter
	rpc       *adapters.RPCToolAdapter
	remote    *adapters.WorkflowRemoteAdapter
	workflows *workflow.Manager

	runtime       *Runtime
	traceShutdown func(context.Context) error

	mu       sync.Mutex
	roots    []discovery.Root
	watchers []*discovery.Watcher
}

// New wires a hub. The context bounds startup work (job store probes).
func New(ctx context.Context, opts Options) (*Hub, error) {
	logger := observability.NewLogger(opts.Log)
	events := observability.NewEventLog(opts.EventLogCapacity)
	metrics := observability.NewMetrics()
	tracer, traceShutdown := observability.NewTracer(opts.Trace)

	policyEngine, err := policy.NewEngine(opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy engine: %w", err)
	}

	var store jobs.Store
	if opts.JobStoreDSN != "" {
		store, err = jobs.NewPostgresStore(ctx, opts.JobStoreDSN)
		if err != nil {
			return nil, fmt.Errorf("job store: %w", err)
		}
	} else {
		store = jobs.NewMemoryStore()
	}
	jobManager := jobs.NewManager(store, events, metrics, jobs.ManagerConfig{
		TTL:           opts.JobTTL,
		SweepInterval: opts.JobSweepInterval,
	})

	h := &Hub{
		opts:          opts,
		logger:        logger,
		registry:      registry.New(),
		events:        events,
		metrics:       metrics,
		tracer:        tracer,
		policy:        policyEngine,
		budget:        budget.NewManager(opts.Budget),
		jobs:          jobManager,
		traceShutdown: traceShutdown,
		roots:         append([]discovery.Root(nil), opts.Roots...),
	}

	h.core = adapters.NewCoreAdapter()
	if err := builtins.Register(h.core, builtins.Config{
		SandboxRoots: opts.Policy.SandboxRoots,
		MaxFileBytes: opts.MaxFileBytes,
		MaxHTTPBytes: opts.MaxHTTPBytes,
		HTTPTimeout:  opts.HTTPTimeout,
		CIDRGuard:    policyEngine.CIDRGuard(),
	}); err != nil {
		return nil, fmt.Errorf("register built-ins: %w", err)
	}

	h.rpc = adapters.NewRPCToolAdapter(nil)
	h.remote = adapters.NewWorkflowRemoteAdapter(jobManager)
	h.workflows = workflow.NewManager(workflow.NewInProcessEngine(h.subInvoke))

	adapterMap := map[models.ToolKind]adapters.Adapter{
		models.KindCore:          h.core,
		models.KindLocalFn:       adapters.NewLocalFnAdapter(),
		models.KindRPCTool:       h.rpc,
		models.KindSkill:         adapters.NewSkillAdapter(h.subInvoke),
		models.KindImagePipeline: adapters.NewImagePipelineAdapter(jobManager),
		models.KindWorkflow: &workflowDispatch{
			embedded: adapters.NewWorkflowEmbeddedAdapter(h.workflows),
			remote:   h.remote,
		},
	}

	h.runtime = NewRuntime(RuntimeDeps{
		Registry:  h.registry,
		Validator: schema.NewValidator(),
		Policy:    policyEngine,
		Budget:    h.budget,
		Evidence:  evidence.NewBuilder(),
		Events:    events,
		Metrics:   metrics,
		Tracer:    tracer,
		Logger:    logger,
		Adapters:  adapterMap,
	})
	return h, nil
}

// InitAllTools registers the built-ins and performs the initial scan of
// all configured roots.
func (h *Hub) InitAllTools(ctx context.Context) error {
	return h.RefreshTools(ctx)
}

// RefreshTools re-scans every root and swaps the discovered tool set
// into the registry. Built-ins survive; workflow definitions re-sync.
func (h *Hub) RefreshTools(ctx context.Context) error {
	h.mu.Lock()
	roots := append([]discovery.Root(nil), h.roots...)
	h.mu.Unlock()

	scanner := discovery.NewScanner(discovery.Config{
		Roots: roots,
		OnError: func(e *discovery.DirError) {
			h.logger.Warn(ctx, "discovery error", "dir", e.Dir, "phase", string(e.Phase), "error", e.Err)
		},
	})
	specs, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Clear()
	coreSpecs, _ := h.core.ListTools(ctx)
	if err := h.registry.BulkRegister(coreSpecs); err != nil {
		return fmt.Errorf("re-register built-ins: %w", err)
	}
	for _, spec := range specs {
		if err := h.registry.Register(spec); err != nil {
			h.logger.Warn(ctx, "skipping invalid discovered tool", "tool", spec.Name, "error", err)
			continue
		}
		if def, ok := spec.Impl.(*workflow.Definition); ok {
			if err := h.workflows.Sync(ctx, spec.Name, def); err != nil {
				h.logger.Warn(ctx, "workflow sync failed", "tool", spec.Name, "error", err)
			}
		}
	}
	return nil
}

// AddRoots appends discovery roots, optionally refreshing immediately.
func (h *Hub) AddRoots(ctx context.Context, roots []discovery.Root, refresh bool) error {
	h.mu.Lock()
	h.roots = append(h.roots, roots...)
	watching := len(h.watchers) > 0
	h.mu.Unlock()

	if watching {
		h.UnwatchRoots()
		if err := h.WatchRoots(ctx); err != nil {
			return err
		}
	}
	if refresh {
		return h.RefreshTools(ctx)
	}
	return nil
}

// SetRoots replaces the root set, optionally refreshing immediately.
func (h *Hub) SetRoots(ctx context.Context, roots []discovery.Root, refresh bool) error {
	h.mu.Lock()
	h.roots = append([]discovery.Root(nil), roots...)
	watching := len(h.watchers) > 0
	h.mu.Unlock()

	if watching {
		h.UnwatchRoots()
		if err := h.WatchRoots(ctx); err != nil {
			return err
		}
	}
	if refresh {
		return h.RefreshTools(ctx)
	}
	return nil
}

// WatchRoots starts one debounced filesystem watcher per root. Changes
// trigger a full re-scan.
func (h *Hub) WatchRoots(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.watchers) > 0 {
		return nil
	}

	for _, root := range h.roots {
		w, err := discovery.NewWatcher(root.Path, h.opts.WatchDebounce, func() {
			refreshCtx := context.Background()
			if err := h.RefreshTools(refreshCtx); err != nil {
				h.logger.Warn(refreshCtx, "hot reload re-scan failed", "error", err)
			}
		}, nil)
		if err != nil {
			h.logger.Warn(ctx, "cannot watch root", "root", root.Path, "error", err)
			continue
		}
		h.watchers = append(h.watchers, w)
	}
	return nil
}

// UnwatchRoots stops all filesystem watchers.
func (h *Hub) UnwatchRoots() {
	h.mu.Lock()
	watchers := h.watchers
	h.watchers = nil
	h.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
}

// ListToolMetadata returns name and description for every registered
// tool, in registration order.
func (h *Hub) ListToolMetadata() []ToolMetadata {
	specs := h.registry.List()
	out := make([]ToolMetadata, 0, len(specs))
	for _, spec := range specs {
		out = append(out, ToolMetadata{Name: spec.Name, Description: spec.Description})
	}
	return out
}

// GetToolDescription returns the caller-facing description of one tool.
// Skills return their instruction payload; every other kind returns the
// structural subset of the spec.
func (h *Hub) GetToolDescription(name string) (map[string]any, error) {
	spec, ok := h.registry.Get(name)
	if !ok {
		return nil, models.NewToolError(models.ErrToolNotFound,
			fmt.Sprintf("tool %q is not registered", name), nil)
	}

	if spec.Kind == models.KindSkill {
		if impl, ok := spec.Impl.(*adapters.SkillImpl); ok && impl != nil && impl.Definition != nil {
			return adapters.InstructionPayload(impl.Definition), nil
		}
	}

	desc := map[string]any{
		"name":         spec.Name,
		"version":      spec.Version,
		"kind":         string(spec.Kind),
		"description":  spec.Description,
		"tags":         spec.Tags,
		"capabilities": spec.Capabilities,
		"inputSchema":  spec.InputSchema,
		"outputSchema": spec.OutputSchema,
	}
	if spec.Endpoint != "" {
		desc["endpoint"] = spec.Endpoint
	}
	return desc, nil
}

// RegisterTool registers a spec programmatically, bypassing discovery.
func (h *Hub) RegisterTool(spec *models.ToolSpec) error {
	return h.registry.Register(spec)
}

// InvokeTool runs one tool by name. A nil opts uses generated IDs and
// the hub's default permissions.
func (h *Hub) InvokeTool(ctx context.Context, name string, args map[string]any, opts *InvokeOptions) *models.ToolResult {
	if opts == nil {
		opts = &InvokeOptions{}
	}
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	taskID := opts.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	permissions := opts.Permissions
	if permissions == nil {
		permissions = h.opts.DefaultPermissions
	}

	intent := &models.ToolIntent{
		Tool:           name,
		Args:           args,
		Purpose:        opts.Purpose,
		IdempotencyKey: opts.IdempotencyKey,
	}
	execCtx := &models.ExecContext{
		RequestID:   requestID,
		TaskID:      taskID,
		TraceID:     opts.TraceID,
		UserID:      opts.UserID,
		Permissions: permissions,
		Budget:      opts.Budget,
		DryRun:      opts.DryRun,
	}
	return h.runtime.Invoke(ctx, intent, execCtx)
}

// InvokeIntent runs one tool from an explicit intent and context.
func (h *Hub) InvokeIntent(ctx context.Context, intent *models.ToolIntent, execCtx *models.ExecContext) *models.ToolResult {
	return h.runtime.Invoke(ctx, intent, execCtx)
}

// Shutdown stops watchers, closes RPC server connections, stops the
// workflow engine, disposes the job manager, and flushes tracing.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.UnwatchRoots()
	h.rpc.Shutdown()
	h.remote.Shutdown()

	var firstErr error
	if err := h.workflows.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := h.jobs.Dispose(); err != nil && firstErr == nil {
		firstErr = err
	}
	if h.traceShutdown != nil {
		if err := h.traceShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Registry exposes the tool catalog (CLI and tests).
func (h *Hub) Registry() *registry.Registry { return h.registry }

// Events exposes the audit log.
func (h *Hub) Events() *observability.EventLog { return h.events }

// Metrics exposes the metrics set.
func (h *Hub) Metrics() *observability.Metrics { return h.metrics }

// Jobs exposes the async job manager.
func (h *Hub) Jobs() *jobs.Manager { return h.jobs }

// subInvoke dispatches nested tool calls (workflow nodes and skill
// handlers) back through the full pipeline. The parent's ExecContext is
// inherited when it was threaded through the context.
func (h *Hub) subInvoke(ctx context.Context, toolName string, args map[string]any) (*models.ToolResult, error) {
	execCtx := execContextFrom(ctx)
	if execCtx == nil {
		execCtx = &models.ExecContext{
			RequestID:   observability.RequestID(ctx),
			TaskID:      observability.TaskID(ctx),
			Permissions: h.opts.DefaultPermissions,
		}
	}
	return h.runtime.Invoke(ctx, &models.ToolIntent{Tool: toolName, Args: args}, execCtx), nil
}

// workflowDispatch routes workflow invocations: specs carrying an
// embedded definition run in process, endpoint-only specs go through
// the webhook adapter.
type workflowDispatch struct {
	embedded *adapters.WorkflowEmbeddedAdapter
	remote   *adapters.WorkflowRemoteAdapter
}

func (d *workflowDispatch) Kind() models.ToolKind {
	return models.KindWorkflow
}

func (d *workflowDispatch) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*adapters.Invocation, error) {
	if _, ok := spec.Impl.(*workflow.Definition); ok {
		return d.embedded.Invoke(ctx, spec, args, execCtx)
	}
	if spec.Endpoint != "" {
		return d.remote.Invoke(ctx, spec, args, execCtx)
	}
	return nil, models.NewToolError(models.ErrUpstream,
		fmt.Sprintf("workflow %s has neither a definition nor an endpoint", spec.Name), nil)
}

// execCtxKey threads the caller's ExecContext into adapter calls so
// nested invocations inherit authority instead of escalating it.
type execCtxKey struct{}

func withExecContext(ctx context.Context, execCtx *models.ExecContext) context.Context {
	return context.WithValue(ctx, execCtxKey{}, execCtx)
}

func execContextFrom(ctx context.Context) *models.ExecContext {
	if v, ok := ctx.Value(execCtxKey{}).(*models.ExecContext); ok {
		return v
	}
	return nil
}
