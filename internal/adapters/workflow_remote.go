package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haasonsaas/toolhub/internal/jobs"
	"github.com/haasonsaas/toolhub/pkg/models"
)

const (
	idempotencyTTL        = time.Hour
	idempotencyGCInterval = 10 * time.Minute
	maxWebhookResponse    = 10 * 1024 * 1024
)

type cachedResult struct {
	result   any
	storedAt time.Time
}

type idempotencyKeyContextKey struct{}

// WithIdempotencyKey threads an explicit intent-level idempotency key to
// the workflow adapter. Without it the adapter derives the default
// requestId:taskId:toolName composite.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

func idempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key
}

// WorkflowRemoteAdapter invokes workflows over an HTTP webhook. Successful
// results are cached by idempotency key for up to one hour, so a repeated
// call inside the window observes the first call's result. Async responses
// register a job with the job manager and return immediately.
type WorkflowRemoteAdapter struct {
	client *http.Client
	jobs   *jobs.Manager

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedResult
	now   func() time.Time

	stopGC chan struct{}
	gcOnce sync.Once
}

// NewWorkflowRemoteAdapter creates the adapter. jobManager may be nil when
// async workflows are not expected.
func NewWorkflowRemoteAdapter(jobManager *jobs.Manager) *WorkflowRemoteAdapter {
	a := &WorkflowRemoteAdapter{
		client: &http.Client{Timeout: 60 * time.Second},
		jobs:   jobManager,
		cache:  make(map[string]cachedResult),
		now:    time.Now,
		stopGC: make(chan struct{}),
	}
	go a.gcLoop()
	return a
}

func (a *WorkflowRemoteAdapter) Kind() models.ToolKind {
	return models.KindWorkflow
}

func (a *WorkflowRemoteAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*Invocation, error) {
	if spec.Endpoint == "" {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("workflow %s has no webhook endpoint", spec.Name), nil)
	}

	key := idempotencyKeyFrom(ctx)
	if key == "" {
		intent := models.ToolIntent{Tool: spec.Name}
		key = intent.EffectiveIdempotencyKey(&execCtx)
	}
	if cached, ok := a.lookup(key); ok {
		return &Invocation{Result: cached}, nil
	}

	// Concurrent identical calls share one in-flight webhook request.
	v, err, _ := a.group.Do(key, func() (any, error) {
		if cached, ok := a.lookup(key); ok {
			return &Invocation{Result: cached}, nil
		}
		inv, err := a.post(ctx, spec, args, execCtx)
		if err != nil {
			return nil, err
		}
		if !inv.async {
			a.store(key, inv.Result)
		}
		return inv.Invocation, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Invocation), nil
}

// Shutdown stops the cache sweeper.
func (a *WorkflowRemoteAdapter) Shutdown() {
	a.gcOnce.Do(func() { close(a.stopGC) })
}

type remoteInvocation struct {
	*Invocation
	async bool
}

func (a *WorkflowRemoteAdapter) post(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*remoteInvocation, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream, "marshal workflow args", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream, "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("webhook call for %s failed", spec.Name), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream, "read webhook response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("webhook for %s returned HTTP %d", spec.Name, resp.StatusCode),
			map[string]any{"body": string(payload)})
	}

	var result map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, models.WrapError(models.ErrUpstream, "parse webhook response", err)
		}
	}

	// 202 or an explicit queued status means the workflow runs out of
	// band; track it as a job.
	if resp.StatusCode == http.StatusAccepted || result["status"] == "queued" {
		return a.registerAsync(ctx, spec, execCtx, result)
	}

	return &remoteInvocation{Invocation: &Invocation{Result: result, Raw: string(payload)}}, nil
}

func (a *WorkflowRemoteAdapter) registerAsync(ctx context.Context, spec *models.ToolSpec, execCtx models.ExecContext, upstream map[string]any) (*remoteInvocation, error) {
	if a.jobs == nil {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("workflow %s responded asynchronously but no job manager is configured", spec.Name), nil)
	}

	metadata := map[string]any{"endpoint": spec.Endpoint}
	if upstreamID, ok := upstream["jobId"].(string); ok {
		metadata["upstreamJobId"] = upstreamID
	}
	job, err := a.jobs.Submit(ctx, spec.Name, execCtx, metadata)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream, "register workflow job", err)
	}

	result := map[string]any{
		"jobId":  job.JobID,
		"status": string(jobs.StatusQueued),
	}
	if queueNumber, ok := upstream["queueNumber"]; ok {
		result["queueNumber"] = queueNumber
	} else {
		result["queueNumber"] = 0
	}
	return &remoteInvocation{Invocation: &Invocation{Result: result, Raw: upstream}, async: true}, nil
}

func (a *WorkflowRemoteAdapter) lookup(key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key]
	if !ok || a.now().Sub(entry.storedAt) > idempotencyTTL {
		return nil, false
	}
	return entry.result, true
}

func (a *WorkflowRemoteAdapter) store(key string, result any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = cachedResult{result: result, storedAt: a.now()}
}

func (a *WorkflowRemoteAdapter) gcLoop() {
	ticker := time.NewTicker(idempotencyGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopGC:
			return
		case <-ticker.C:
			a.mu.Lock()
			cutoff := a.now().Add(-idempotencyTTL)
			for key, entry := range a.cache {
				if entry.storedAt.Before(cutoff) {
					delete(a.cache, key)
				}
			}
			a.mu.Unlock()
		}
	}
}
