// Package schema wraps JSON-Schema compilation and validation for tool
// input/output checking. Compiled schemas are cached by a canonical
// serialization so equivalent schema objects share one compiled validator.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Issue describes a single validation failure.
type Issue struct {
	InstanceLocation string `json:"instanceLocation"`
	KeywordLocation  string `json:"keywordLocation"`
	Message          string `json:"message"`
}

// Result is the outcome of a Validate call. Data carries the coerced and
// default-filled value regardless of validity.
type Result struct {
	Valid  bool
	Data   any
	Errors []Issue
}

// ValidationError is returned by ValidateStrict when data does not satisfy
// the schema. It carries the flattened issue list and a context prefix.
type ValidationError struct {
	Context string
	Issues  []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Context + ": schema validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		loc := issue.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		parts = append(parts, loc+": "+issue.Message)
	}
	return e.Context + ": " + strings.Join(parts, "; ")
}

// Validator compiles and caches JSON-Schema validators.
type Validator struct {
	cache sync.Map // canonical schema JSON -> *jsonschema.Schema
}

// NewValidator returns an empty validator cache.
func NewValidator() *Validator {
	return &Validator{}
}

// Compile returns the compiled form of a schema object, normalizing common
// schema drift first (see Normalize). The cache key is the canonical JSON
// serialization, not object identity.
func (v *Validator) Compile(schemaObj map[string]any) (*jsonschema.Schema, error) {
	normalized := Normalize(schemaObj)
	key, err := canonicalKey(normalized)
	if err != nil {
		return nil, fmt.Errorf("serialize schema: %w", err)
	}
	if cached, ok := v.cache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.cache.Store(key, compiled)
	return compiled, nil
}

// Validate checks data against the schema with type coercion and default
// filling applied first. When the coerced data still fails, properties not
// declared by the schema are stripped and validation runs once more; the
// stripped form is kept only if it passes.
func (v *Validator) Validate(schemaObj map[string]any, data any) (*Result, error) {
	compiled, err := v.Compile(schemaObj)
	if err != nil {
		return nil, err
	}
	normalized := Normalize(schemaObj)

	candidate := coerce(normalized, toJSONValue(data))
	candidate = fillDefaults(normalized, candidate)

	if err := compiled.Validate(candidate); err == nil {
		return &Result{Valid: true, Data: candidate}, nil
	}

	stripped := stripUnknown(normalized, candidate)
	if err := compiled.Validate(stripped); err == nil {
		return &Result{Valid: true, Data: stripped}, nil
	} else if verr, ok := err.(*jsonschema.ValidationError); ok {
		return &Result{Valid: false, Data: candidate, Errors: flatten(verr)}, nil
	} else {
		return &Result{Valid: false, Data: candidate, Errors: []Issue{{Message: err.Error()}}}, nil
	}
}

// ValidateStrict validates and returns a ValidationError on failure, with
// the given context prefix. On success it returns the enriched data.
func (v *Validator) ValidateStrict(schemaObj map[string]any, data any, context string) (any, error) {
	res, err := v.Validate(schemaObj, data)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, &ValidationError{Context: context, Issues: res.Errors}
	}
	return res.Data, nil
}

// canonicalKey serializes a schema with stable key ordering. encoding/json
// sorts map keys, which gives the canonical form directly.
func canonicalKey(schemaObj map[string]any) (string, error) {
	raw, err := json.Marshal(schemaObj)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func flatten(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			issues = append(issues, Issue{
				InstanceLocation: e.InstanceLocation,
				KeywordLocation:  e.KeywordLocation,
				Message:          e.Message,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}

// toJSONValue round-trips arbitrary Go values into the generic JSON shape
// (map[string]any, []any, float64, ...) the compiled validator expects.
func toJSONValue(data any) any {
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return data
	}
	return out
}
