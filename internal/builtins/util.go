package builtins

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func registerUtilTools(adapter *adapters.CoreAdapter) error {
	nowSpec := &models.ToolSpec{
		Name:        "util.now",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Current UTC time as RFC 3339 plus unix milliseconds",
		Tags:        []string{"util", "core"},
		InputSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"iso", "unixMs"},
			"properties": map[string]any{
				"iso":    map[string]any{"type": "string"},
				"unixMs": map[string]any{"type": "integer"},
			},
		},
	}
	err := adapter.RegisterTool(nowSpec, func(_ context.Context, _ map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		now := time.Now().UTC()
		return map[string]any{
			"iso":    now.Format(time.RFC3339),
			"unixMs": now.UnixMilli(),
		}, nil, nil
	})
	if err != nil {
		return err
	}

	uuidSpec := &models.ToolSpec{
		Name:        "util.uuid",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "Generate a random UUID v4",
		Tags:        []string{"util", "core"},
		InputSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"uuid"},
			"properties": map[string]any{
				"uuid": map[string]any{"type": "string"},
			},
		},
	}
	err = adapter.RegisterTool(uuidSpec, func(_ context.Context, _ map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		return map[string]any{"uuid": uuid.NewString()}, nil, nil
	})
	if err != nil {
		return err
	}

	hashSpec := &models.ToolSpec{
		Name:        "util.hash",
		Version:     "1.0.0",
		Kind:        models.KindCore,
		Description: "SHA-256 digest of a string, hex or base64 encoded",
		Tags:        []string{"util", "core"},
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"text"},
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
				"encoding": map[string]any{
					"type":    "string",
					"enum":    []any{"hex", "base64"},
					"default": "hex",
				},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"digest", "algorithm"},
			"properties": map[string]any{
				"digest":    map[string]any{"type": "string"},
				"algorithm": map[string]any{"type": "string"},
			},
		},
	}
	return adapter.RegisterTool(hashSpec, func(_ context.Context, args map[string]any, _ models.ExecContext) (any, []models.Evidence, error) {
		text, _ := args["text"].(string)
		encoding, _ := args["encoding"].(string)

		sum := sha256.Sum256([]byte(text))
		var digest string
		switch encoding {
		case "", "hex":
			digest = hex.EncodeToString(sum[:])
		case "base64":
			digest = base64.StdEncoding.EncodeToString(sum[:])
		default:
			return nil, nil, models.NewToolError(models.ErrValidation,
				fmt.Sprintf("unsupported encoding %q", encoding), nil)
		}
		return map[string]any{"digest": digest, "algorithm": "sha256"}, nil, nil
	})
}
