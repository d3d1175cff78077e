package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/mcp"
	"github.com/haasonsaas/toolhub/internal/workflow"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scanOne(t *testing.T, root string) ([]*models.ToolSpec, []*DirError) {
	t.Helper()
	var dirErrs []*DirError
	scanner := NewScanner(Config{
		Roots:   []Root{{Path: root, Namespace: "demo"}},
		OnError: func(e *DirError) { dirErrs = append(dirErrs, e) },
	})
	specs, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return specs, dirErrs
}

func specByName(t *testing.T, specs []*models.ToolSpec, name string) *models.ToolSpec {
	t.Helper()
	for _, s := range specs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no spec named %s in %d specs", name, len(specs))
	return nil
}

func TestScanWorkflowDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "etl", "workflow.json"),
		`{"id":"wf-etl","name":"etl","description":"extract and load","nodes":[{"id":"read","tool":"fs.readText"}]}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}

	spec := specByName(t, specs, "demo/etl")
	if spec.Kind != models.KindWorkflow {
		t.Errorf("kind = %s", spec.Kind)
	}
	if spec.ResourceID != "wf-etl" {
		t.Errorf("resourceId = %s", spec.ResourceID)
	}
	def, ok := spec.Impl.(*workflow.Definition)
	if !ok || len(def.Nodes) != 1 {
		t.Errorf("impl = %T", spec.Impl)
	}
	if spec.Version == "" || spec.InputSchema == nil || spec.OutputSchema == nil {
		t.Errorf("defaults not stamped: %+v", spec)
	}
}

func TestScanRPCDirBareForm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "weather", "mcp.json"),
		`{"command":"weather-server","args":["--port","0"]}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}

	spec := specByName(t, specs, "demo/weather")
	cfg, ok := spec.Impl.(*mcp.ServerConfig)
	if !ok {
		t.Fatalf("impl = %T", spec.Impl)
	}
	if cfg.Command != "weather-server" || cfg.Transport != mcp.TransportStdio {
		t.Errorf("cfg = %+v", cfg)
	}
	if !spec.HasCapability(models.CapNetwork) {
		t.Error("rpc tools should declare the network capability")
	}
}

func TestScanRPCDirWrapperPicksLeafKey(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "search", "mcp.json"),
		`{"mcpServers":{"other":{"command":"other-server"},"search":{"url":"http://localhost:9001/rpc"}}}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}

	cfg := specByName(t, specs, "demo/search").Impl.(*mcp.ServerConfig)
	if cfg.URL != "http://localhost:9001/rpc" || cfg.Transport != mcp.TransportHTTP {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestScanRPCDirWrapperFallsBackToFirstKey(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tools", "mcp.json"),
		`{"mcpServers":{"zeta":{"command":"zeta-server"},"alpha":{"command":"alpha-server"}}}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}
	cfg := specByName(t, specs, "demo/tools").Impl.(*mcp.ServerConfig)
	if cfg.Command != "alpha-server" {
		t.Errorf("command = %s, want first key in sorted order", cfg.Command)
	}
}

func TestScanRPCDirNeedsCommandOrURL(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken", "mcp.json"), `{"env":{"KEY":"v"}}`)

	specs, dirErrs := scanOne(t, root)
	if len(specs) != 0 {
		t.Errorf("specs = %v", specs)
	}
	if len(dirErrs) != 1 || dirErrs[0].Phase != PhaseLoad {
		t.Fatalf("errors = %v", dirErrs)
	}
}

func TestScanSkillDir(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, "pdf-report")
	writeFile(t, filepath.Join(skillDir, "SKILL.md"), `---
name: pdf-report
description: Build PDF reports from structured data
---

Run the render script against the input payload.
`)
	writeFile(t, filepath.Join(skillDir, "scripts", "render.py"), "print('render')\n")
	// A marker inside the resource tree must not produce a second tool.
	writeFile(t, filepath.Join(skillDir, "examples", "workflow.json"), `{"nodes":[]}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}
	if len(specs) != 1 {
		t.Fatalf("specs = %d, want 1", len(specs))
	}

	spec := specs[0]
	if spec.Name != "demo/pdf-report" || spec.Kind != models.KindSkill {
		t.Errorf("spec = %+v", spec)
	}
	impl := spec.Impl.(*adapters.SkillImpl)
	if impl.Definition.Frontmatter.Name != "pdf-report" {
		t.Errorf("frontmatter = %+v", impl.Definition.Frontmatter)
	}
	if len(impl.Definition.Resources) == 0 {
		t.Error("resources not scanned")
	}
}

func TestScanDisabledDirSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "off", "tool.json"), `{"enabled":false}`)
	writeFile(t, filepath.Join(root, "off", "workflow.json"), `{"name":"off","nodes":[{"tool":"x"}]}`)
	// Disabled is recursive: nested tools under it stay hidden too.
	writeFile(t, filepath.Join(root, "off", "nested", "mcp.json"), `{"command":"srv"}`)

	specs, dirErrs := scanOne(t, root)
	if len(specs) != 0 || len(dirErrs) != 0 {
		t.Errorf("specs = %v, errors = %v", specs, dirErrs)
	}
}

func TestScanAmbiguousMarkers(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "confused")
	writeFile(t, filepath.Join(dir, "workflow.json"), `{"name":"w","nodes":[{"tool":"x"}]}`)
	writeFile(t, filepath.Join(dir, "mcp.json"), `{"command":"srv"}`)

	specs, dirErrs := scanOne(t, root)
	if len(specs) != 0 {
		t.Errorf("specs = %v", specs)
	}
	if len(dirErrs) != 1 || dirErrs[0].Phase != PhaseManifest {
		t.Fatalf("errors = %v", dirErrs)
	}
}

func TestScanManifestKindDisambiguates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "picked")
	writeFile(t, filepath.Join(dir, "tool.json"), `{"kind":"workflow","name":"demo/picked","version":"2.0.0"}`)
	writeFile(t, filepath.Join(dir, "workflow.json"), `{"name":"picked","nodes":[{"tool":"x"}]}`)
	writeFile(t, filepath.Join(dir, "mcp.json"), `{"command":"srv"}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}
	spec := specByName(t, specs, "demo/picked")
	if spec.Kind != models.KindWorkflow || spec.Version != "2.0.0" {
		t.Errorf("spec = %+v", spec)
	}
}

func TestScanImagePipelineManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "render", "tool.json"),
		`{"kind":"image-pipeline","endpoint":"http://gpu-box:8188","costHints":{"isAsync":true}}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}
	spec := specByName(t, specs, "demo/render")
	if spec.Kind != models.KindImagePipeline || spec.Endpoint != "http://gpu-box:8188" {
		t.Errorf("spec = %+v", spec)
	}
	if spec.CostHints == nil || !spec.CostHints.IsAsync {
		t.Errorf("costHints = %+v", spec.CostHints)
	}
}

func TestScanLocalFnEntryModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "greet", "tool.go"), `package tool

import "encoding/json"

var Description = "Greets the caller"

var Schema = `+"`"+`{"type":"object","properties":{"name":{"type":"string"}}}`+"`"+`

func Invoke(input string) (string, error) {
	var in map[string]any
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", err
	}
	name, _ := in["name"].(string)
	out, err := json.Marshal(map[string]any{"greeting": "hello " + name})
	return string(out), err
}
`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}

	spec := specByName(t, specs, "demo/greet")
	if spec.Kind != models.KindLocalFn {
		t.Errorf("kind = %s", spec.Kind)
	}
	if spec.Description != "Greets the caller" {
		t.Errorf("description = %q", spec.Description)
	}
	if props, ok := spec.InputSchema["properties"].(map[string]any); !ok || props["name"] == nil {
		t.Errorf("inputSchema = %v", spec.InputSchema)
	}

	fn := spec.Impl.(adapters.LocalFunc)
	out, err := fn(context.Background(), map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.(map[string]any)["greeting"] != "hello ada" {
		t.Errorf("out = %v", out)
	}
}

func TestScanKindDirHostsManyTools(t *testing.T) {
	root := t.TempDir()
	module := func(result string) string {
		return `package tool

func Invoke(input string) (string, error) {
	return ` + "`" + `{"value":"` + result + `"}` + "`" + `, nil
}
`
	}
	writeFile(t, filepath.Join(root, "text", "langchain", "upper.go"), module("upper"))
	writeFile(t, filepath.Join(root, "text", "langchain", "reverse.go"), module("reverse"))

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 0 {
		t.Fatalf("errors: %v", dirErrs)
	}

	for _, name := range []string{"demo/upper-local-fn", "demo/reverse-local-fn"} {
		spec := specByName(t, specs, name)
		if spec.Kind != models.KindLocalFn {
			t.Errorf("%s kind = %s", name, spec.Kind)
		}
	}
}

func TestScanBrokenDirDoesNotAbortSiblings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad", "workflow.json"), `{not json`)
	writeFile(t, filepath.Join(root, "good", "workflow.json"), `{"name":"good","nodes":[{"tool":"x"}]}`)

	specs, dirErrs := scanOne(t, root)
	if len(dirErrs) != 1 {
		t.Fatalf("errors = %v", dirErrs)
	}
	var dirErr *DirError
	if !errors.As(dirErrs[0], &dirErr) || dirErr.Phase != PhaseLoad {
		t.Errorf("error = %v", dirErrs[0])
	}
	specByName(t, specs, "demo/good")
}

func TestScanMissingRootReportsError(t *testing.T) {
	specs, dirErrs := scanOne(t, filepath.Join(t.TempDir(), "gone"))
	if len(specs) != 0 || len(dirErrs) != 1 {
		t.Errorf("specs = %v, errors = %v", specs, dirErrs)
	}
}
