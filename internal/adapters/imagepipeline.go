package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/toolhub/internal/jobs"
	"github.com/haasonsaas/toolhub/pkg/models"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 60
	maxPipelineResponse = 10 * 1024 * 1024
)

// ImagePipelineAdapter submits prompts to a queueing image back-end. The
// endpoint accepts a POST returning { promptId }; results are fetched from
// <endpoint>/history/<promptId>. Async specs return a queued job instead
// of blocking on the poll loop.
type ImagePipelineAdapter struct {
	client       *http.Client
	jobs         *jobs.Manager
	pollInterval time.Duration
	maxPolls     int
}

// NewImagePipelineAdapter creates the adapter. jobManager may be nil when
// no async pipelines are configured.
func NewImagePipelineAdapter(jobManager *jobs.Manager) *ImagePipelineAdapter {
	return &ImagePipelineAdapter{
		client:       &http.Client{Timeout: 30 * time.Second},
		jobs:         jobManager,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

func (a *ImagePipelineAdapter) Kind() models.ToolKind {
	return models.KindImagePipeline
}

func (a *ImagePipelineAdapter) Invoke(ctx context.Context, spec *models.ToolSpec, args map[string]any, execCtx models.ExecContext) (*Invocation, error) {
	if spec.Endpoint == "" {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("image pipeline %s has no endpoint", spec.Name), nil)
	}

	promptID, queueNumber, err := a.submit(ctx, spec, args)
	if err != nil {
		return nil, err
	}

	if spec.CostHints != nil && spec.CostHints.IsAsync {
		return a.registerAsync(ctx, spec, execCtx, promptID, queueNumber)
	}

	urls, raw, err := a.poll(ctx, spec, promptID)
	if err != nil {
		return nil, err
	}
	return &Invocation{
		Result: map[string]any{"promptId": promptID, "images": urls},
		Raw:    raw,
	}, nil
}

func (a *ImagePipelineAdapter) submit(ctx context.Context, spec *models.ToolSpec, args map[string]any) (string, any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return "", nil, models.WrapError(models.ErrUpstream, "marshal prompt", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, models.WrapError(models.ErrUpstream, "build prompt request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", nil, models.WrapError(models.ErrUpstream,
			fmt.Sprintf("submit prompt for %s", spec.Name), err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxPipelineResponse))
	if resp.StatusCode >= 400 {
		return "", nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("pipeline %s returned HTTP %d", spec.Name, resp.StatusCode),
			map[string]any{"body": string(payload)})
	}

	var queued struct {
		PromptID    string `json:"promptId"`
		QueueNumber any    `json:"queueNumber"`
	}
	if err := json.Unmarshal(payload, &queued); err != nil || queued.PromptID == "" {
		return "", nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("pipeline %s response has no promptId", spec.Name),
			map[string]any{"body": string(payload)})
	}
	return queued.PromptID, queued.QueueNumber, nil
}

func (a *ImagePipelineAdapter) registerAsync(ctx context.Context, spec *models.ToolSpec, execCtx models.ExecContext, promptID string, queueNumber any) (*Invocation, error) {
	if a.jobs == nil {
		return nil, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("pipeline %s is async but no job manager is configured", spec.Name), nil)
	}
	job, err := a.jobs.Submit(ctx, spec.Name, execCtx, map[string]any{
		"promptId": promptID,
		"endpoint": spec.Endpoint,
	})
	if err != nil {
		return nil, models.WrapError(models.ErrUpstream, "register pipeline job", err)
	}
	result := map[string]any{
		"jobId":  job.JobID,
		"status": string(jobs.StatusQueued),
	}
	if queueNumber != nil {
		result["queueNumber"] = queueNumber
	} else {
		result["queueNumber"] = 0
	}
	return &Invocation{Result: result}, nil
}

// poll checks the history endpoint at a fixed interval until artifacts
// appear or the attempt budget runs out.
func (a *ImagePipelineAdapter) poll(ctx context.Context, spec *models.ToolSpec, promptID string) ([]string, any, error) {
	historyURL := strings.TrimSuffix(spec.Endpoint, "/") + "/history/" + promptID

	for attempt := 0; attempt < a.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}

		urls, raw, done, err := a.fetchHistory(ctx, historyURL)
		if err != nil {
			return nil, nil, err
		}
		if done {
			return urls, raw, nil
		}
	}

	return nil, nil, models.NewToolError(models.ErrTimeout,
		fmt.Sprintf("pipeline %s did not finish after %d polls", spec.Name, a.maxPolls),
		map[string]any{"promptId": promptID})
}

func (a *ImagePipelineAdapter) fetchHistory(ctx context.Context, historyURL string) ([]string, any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, historyURL, nil)
	if err != nil {
		return nil, nil, false, models.WrapError(models.ErrUpstream, "build history request", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, false, models.WrapError(models.ErrUpstream, "fetch pipeline history", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxPipelineResponse))
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, false, nil // still queued
	}
	if resp.StatusCode >= 400 {
		return nil, nil, false, models.NewToolError(models.ErrUpstream,
			fmt.Sprintf("history endpoint returned HTTP %d", resp.StatusCode),
			map[string]any{"body": string(payload)})
	}

	var history map[string]any
	if err := json.Unmarshal(payload, &history); err != nil {
		return nil, nil, false, models.WrapError(models.ErrUpstream, "parse pipeline history", err)
	}
	if len(history) == 0 {
		return nil, nil, false, nil
	}

	urls := extractImageURLs(history)
	return urls, history, true, nil
}

// extractImageURLs walks the history payload collecting http(s) strings
// that end in an image extension.
func extractImageURLs(value any) []string {
	var urls []string
	var walk func(v any)
	walk = func(v any) {
		switch typed := v.(type) {
		case string:
			if isImageURL(typed) {
				urls = append(urls, typed)
			}
		case map[string]any:
			for _, item := range typed {
				walk(item)
			}
		case []any:
			for _, item := range typed {
				walk(item)
			}
		}
	}
	walk(value)
	return urls
}

func isImageURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	lower := strings.ToLower(s)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
