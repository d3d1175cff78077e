package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// Entry modules are interpreted, not compiled, so a broken tool file can
// never take the hub down with it. The module must export either
//
//	func Invoke(input string) (string, error)
//
// or a package-level Tool value exposing that method. Input and output
// are JSON documents. Optional exports: Description (string) and Schema
// (a JSON Schema document as a string) used when the manifest omits them.
type interpretedFunc func(string) (string, error)

var packageClause = regexp.MustCompile(`(?m)^package\s+([A-Za-z_]\w*)`)

// loadLocalFn interprets the entry module and wraps its Invoke export
// into a local function spec.
func loadLocalFn(entryPath string) (*models.ToolSpec, error) {
	src, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("read entry module: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load interpreter stdlib: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluate entry module: %w", err)
	}

	pkg := packageName(src)
	call, err := exportedInvoke(i, pkg)
	if err != nil {
		return nil, err
	}

	spec := &models.ToolSpec{
		Kind: models.KindLocalFn,
		Impl: wrapInterpreted(call),
	}
	if desc, ok := evalString(i, pkg+".Description"); ok {
		spec.Description = desc
	}
	if schemaJSON, ok := evalString(i, pkg+".Schema"); ok {
		var schema map[string]any
		if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
			return nil, fmt.Errorf("parse exported Schema: %w", err)
		}
		spec.InputSchema = schema
	}
	return spec, nil
}

// exportedInvoke resolves the callable: a bare Invoke function first,
// then a Tool value carrying the method.
func exportedInvoke(i *interp.Interpreter, pkg string) (interpretedFunc, error) {
	if v, err := i.Eval(pkg + ".Invoke"); err == nil {
		fn, ok := v.Interface().(func(string) (string, error))
		if !ok {
			return nil, fmt.Errorf("Invoke is %T, want func(string) (string, error)", v.Interface())
		}
		return fn, nil
	}
	if v, err := i.Eval(pkg + ".Tool"); err == nil {
		tool, ok := v.Interface().(interface {
			Invoke(string) (string, error)
		})
		if !ok {
			return nil, fmt.Errorf("Tool value of %T does not expose Invoke(string) (string, error)", v.Interface())
		}
		return tool.Invoke, nil
	}
	return nil, fmt.Errorf("entry module exports neither %s.Invoke nor %s.Tool", pkg, pkg)
}

// wrapInterpreted bridges the JSON-string contract of entry modules to
// the adapter's map-based local function shape. The interpreted call
// cannot be preempted, so cancellation abandons it instead.
func wrapInterpreted(call interpretedFunc) adapters.LocalFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode input: %w", err)
		}

		type outcome struct {
			out string
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			out, err := call(string(payload))
			done <- outcome{out: out, err: err}
		}()

		select {
		case o := <-done:
			if o.err != nil {
				return nil, o.err
			}
			var decoded any
			if json.Unmarshal([]byte(o.out), &decoded) == nil {
				return decoded, nil
			}
			return o.out, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func evalString(i *interp.Interpreter, expr string) (string, bool) {
	v, err := i.Eval(expr)
	if err != nil {
		return "", false
	}
	s, ok := v.Interface().(string)
	return s, ok
}

func packageName(src []byte) string {
	if m := packageClause.FindSubmatch(src); m != nil {
		return string(m[1])
	}
	return "main"
}
