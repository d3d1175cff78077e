package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haasonsaas/toolhub/internal/jobs"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func pipelineSpec(name, endpoint string, async bool) *models.ToolSpec {
	spec := &models.ToolSpec{
		Name:         name,
		Version:      "1.0.0",
		Kind:         models.KindImagePipeline,
		Endpoint:     endpoint,
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
	if async {
		spec.CostHints = &models.CostHints{IsAsync: true}
	}
	return spec
}

func TestImagePipelineSyncPoll(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"promptId": "p-77", "queueNumber": 1})
	})
	mux.HandleFunc("/history/p-77", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 3 {
			// Not finished yet.
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"outputs": []any{
				map[string]any{"url": "https://img.example/p-77/0.png"},
				map[string]any{"url": "https://img.example/p-77/1.png"},
				map[string]any{"note": "not a url"},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := NewImagePipelineAdapter(nil)
	adapter.pollInterval = time.Millisecond
	adapter.maxPolls = 10

	inv, err := adapter.Invoke(context.Background(), pipelineSpec("img/gen", server.URL, false), map[string]any{"prompt": "cat"}, models.ExecContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	result := inv.Result.(map[string]any)
	if result["promptId"] != "p-77" {
		t.Errorf("promptId = %v", result["promptId"])
	}
	images := result["images"].([]string)
	if len(images) != 2 || !strings.HasSuffix(images[0], ".png") {
		t.Errorf("images = %v", images)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d", polls.Load())
	}
}

func TestImagePipelinePollBudgetExhausted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"promptId": "p-1"})
	})
	mux.HandleFunc("/history/p-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := NewImagePipelineAdapter(nil)
	adapter.pollInterval = time.Millisecond
	adapter.maxPolls = 3

	_, err := adapter.Invoke(context.Background(), pipelineSpec("img/slow", server.URL, false), nil, models.ExecContext{})
	var toolErr *models.ToolError
	if !errors.As(err, &toolErr) || toolErr.Kind != models.ErrTimeout {
		t.Errorf("error = %v", err)
	}
}

func TestImagePipelineAsync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"promptId": "p-9", "queueNumber": 5})
	}))
	defer server.Close()

	jobManager := jobs.NewManager(jobs.NewMemoryStore(), nil, nil, jobs.ManagerConfig{TTL: time.Minute})
	defer jobManager.Dispose()

	adapter := NewImagePipelineAdapter(jobManager)
	inv, err := adapter.Invoke(context.Background(), pipelineSpec("img/async", server.URL, true), nil, models.ExecContext{RequestID: "r1"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	result := inv.Result.(map[string]any)
	if result["status"] != "queued" {
		t.Errorf("status = %v", result["status"])
	}
	job, err := jobManager.GetJob(context.Background(), result["jobId"].(string))
	if err != nil {
		t.Fatalf("job not registered: %v", err)
	}
	if job.Metadata["promptId"] != "p-9" {
		t.Errorf("job metadata = %v", job.Metadata)
	}
}

func TestImagePipelineMissingPromptID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"unexpected": true})
	}))
	defer server.Close()

	adapter := NewImagePipelineAdapter(nil)
	if _, err := adapter.Invoke(context.Background(), pipelineSpec("img/broken", server.URL, false), nil, models.ExecContext{}); err == nil {
		t.Error("missing promptId should error")
	}
}

func TestExtractImageURLs(t *testing.T) {
	history := map[string]any{
		"a": "https://x.example/one.PNG",
		"b": []any{"https://x.example/page.html", "http://x.example/two.jpg"},
		"c": map[string]any{"d": "./local/three.png"},
	}
	urls := extractImageURLs(history)
	if len(urls) != 2 {
		t.Errorf("urls = %v", urls)
	}
}
