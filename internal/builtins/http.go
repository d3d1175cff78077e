package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func registerHTTPTools(adapter *adapters.CoreAdapter, config Config) error {
	client := &http.Client{Timeout: config.HTTPTimeout}

	urlInput := map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "http(s) URL to fetch"},
		},
		"additionalProperties": false,
	}

	textSpec := &models.ToolSpec{
		Name:        "http.fetchText",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Fetch a URL and return the response body as text",
		Tags:        []string{"http", "core"},
		Capabilities: []models.Capability{
			models.CapReadWeb, models.CapNetwork,
		},
		InputSchema: urlInput,
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"status", "body"},
			"properties": map[string]any{
				"status":      map[string]any{"type": "integer"},
				"body":        map[string]any{"type": "string"},
				"contentType": map[string]any{"type": "string"},
			},
		},
	}
	if err := adapter.RegisterTool(textSpec, fetchTextHandler(client, config)); err != nil {
		return err
	}

	jsonSpec := &models.ToolSpec{
		Name:        "http.fetchJson",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Fetch a URL and parse the response body as JSON",
		Tags:        []string{"http", "core"},
		Capabilities: []models.Capability{
			models.CapReadWeb, models.CapNetwork,
		},
		InputSchema: urlInput,
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"status", "data"},
			"properties": map[string]any{
				"status": map[string]any{"type": "integer"},
				"data":   map[string]any{},
			},
		},
	}
	return adapter.RegisterTool(jsonSpec, fetchJSONHandler(client, config))
}

func fetchTextHandler(client *http.Client, config Config) adapters.CoreHandler {
	return func(ctx context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		status, body, contentType, err := fetch(ctx, client, config, args)
		if err != nil {
			return nil, nil, err
		}
		evidence := []models.Evidence{{
			Type:      models.EvidenceURL,
			Ref:       args["url"].(string),
			Summary:   fmt.Sprintf("fetched %d bytes, HTTP %d", len(body), status),
			CreatedAt: time.Now().UTC(),
		}}
		return map[string]any{
			"status":      status,
			"body":        string(body),
			"contentType": contentType,
		}, evidence, nil
	}
}

func fetchJSONHandler(client *http.Client, config Config) adapters.CoreHandler {
	return func(ctx context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		status, body, _, err := fetch(ctx, client, config, args)
		if err != nil {
			return nil, nil, err
		}
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, nil, models.WrapError(models.ErrUpstream, "response is not valid JSON", err)
		}
		return map[string]any{"status": status, "data": data}, nil, nil
	}
}

func fetch(ctx context.Context, client *http.Client, config Config, args map[string]any) (int, []byte, string, error) {
	raw, _ := args["url"].(string)

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return 0, nil, "", models.NewToolError(models.ErrHTTPDisallowedHost,
			fmt.Sprintf("only http and https URLs are allowed: %q", raw), nil)
	}
	if config.CIDRGuard != nil {
		if err := config.CIDRGuard.CheckHost(ctx, parsed.Hostname()); err != nil {
			return 0, nil, "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return 0, nil, "", models.WrapError(models.ErrUpstream, "build request", err)
	}
	req.Header.Set("User-Agent", "toolhub/1.0")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, "", models.WrapError(models.ErrHTTPTimeout,
				fmt.Sprintf("fetch %s timed out", raw), err)
		}
		return 0, nil, "", models.WrapError(models.ErrUpstream,
			fmt.Sprintf("fetch %s failed", raw), err)
	}
	defer resp.Body.Close()

	// Read one byte past the limit to tell "exactly at cap" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPBytes+1))
	if err != nil {
		if isTimeout(err) {
			return 0, nil, "", models.WrapError(models.ErrHTTPTimeout,
				fmt.Sprintf("fetch %s timed out", raw), err)
		}
		return 0, nil, "", models.WrapError(models.ErrUpstream, "read response", err)
	}
	if int64(len(body)) > config.MaxHTTPBytes {
		return 0, nil, "", models.NewToolError(models.ErrHTTPTooLarge,
			fmt.Sprintf("response exceeds %d bytes", config.MaxHTTPBytes),
			map[string]any{"limit": config.MaxHTTPBytes})
	}

	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
