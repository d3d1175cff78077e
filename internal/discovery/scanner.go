package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Marker filenames that imply a tool kind.
const (
	skillMarker    = "SKILL.md"
	workflowMarker = "workflow.json"
	rpcMarker      = "mcp.json"
	entryMarker    = "tool.go"
)

// kindDirNames maps kind-named subfolder names to the kind of the entry
// files they host. A toolset directory may hold one of these next to a
// flat tool; both are discovered.
var kindDirNames = map[string]models.ToolKind{
	"local-fn":  models.KindLocalFn,
	"langchain": models.KindLocalFn,
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	".git":         true,
}

// Config configures a Scanner.
type Config struct {
	Roots []Root

	// OnError receives per-directory failures. Nil discards them.
	OnError func(*DirError)

	// DefaultVersion is stamped on specs without an explicit version.
	// Defaults to "0.1.0".
	DefaultVersion string
}

// Scanner walks discovery roots and produces tool specs.
type Scanner struct {
	roots          []Root
	onError        func(*DirError)
	defaultVersion string
}

// NewScanner creates a scanner.
func NewScanner(config Config) *Scanner {
	version := config.DefaultVersion
	if version == "" {
		version = "0.1.0"
	}
	onError := config.OnError
	if onError == nil {
		onError = func(*DirError) {}
	}
	return &Scanner{
		roots:          config.Roots,
		onError:        onError,
		defaultVersion: version,
	}
}

// Scan walks every root and returns the discovered specs. Per-directory
// failures go to the error sink; only context cancellation stops the walk.
func (s *Scanner) Scan(ctx context.Context) ([]*models.ToolSpec, error) {
	var specs []*models.ToolSpec
	for _, root := range s.roots {
		found, err := s.scanRoot(ctx, root)
		if err != nil {
			return specs, err
		}
		specs = append(specs, found...)
	}
	return specs, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root Root) ([]*models.ToolSpec, error) {
	info, err := os.Stat(root.Path)
	if err != nil || !info.IsDir() {
		s.onError(&DirError{Dir: root.Path, Phase: PhaseManifest,
			Err: fmt.Errorf("root is not a directory: %v", err)})
		return nil, nil
	}

	var specs []*models.ToolSpec
	walkErr := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.onError(&DirError{Dir: path, Phase: PhaseManifest, Err: err})
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if path != root.Path && (skippedDirs[base] || strings.HasPrefix(base, ".")) {
			return fs.SkipDir
		}

		found, skipChildren := s.scanDir(root, path)
		specs = append(specs, found...)
		if skipChildren {
			return fs.SkipDir
		}
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return specs, walkErr
	}
	return specs, nil
}

// scanDir processes one directory. The second return tells the walk to
// skip the directory's children (skills own their resource trees, and a
// disabled directory is skipped wholesale).
func (s *Scanner) scanDir(root Root, dir string) ([]*models.ToolSpec, bool) {
	manifest, err := readManifest(dir)
	if err != nil {
		s.onError(&DirError{Dir: dir, Phase: PhaseManifest, Err: err})
		return nil, false
	}
	if !manifest.enabled() {
		return nil, true
	}

	base := filepath.Base(dir)
	if kind, ok := kindDirNames[base]; ok {
		return s.scanKindDir(root, dir, base, kind, manifest), false
	}

	kind, err := s.resolveKind(dir, manifest)
	if err != nil {
		s.onError(&DirError{Dir: dir, Phase: PhaseManifest, Err: err})
		return nil, false
	}
	if kind == "" {
		return nil, false
	}

	spec, err := s.loadKind(kind, dir, base, manifest)
	if err != nil {
		s.onError(&DirError{Dir: dir, Phase: PhaseLoad, Err: err})
		return nil, kind == models.KindSkill
	}

	s.finish(spec, root, base, "")
	manifest.apply(spec)
	if err := spec.Validate(); err != nil {
		s.onError(&DirError{Dir: dir, Phase: PhaseValidate, Err: err})
		return nil, kind == models.KindSkill
	}
	return []*models.ToolSpec{spec}, kind == models.KindSkill
}

// scanKindDir loads every entry file of a kind-named subfolder as its
// own tool. Names get a "-<kind>" suffix so sibling kinds under the same
// toolset cannot collide.
func (s *Scanner) scanKindDir(root Root, dir, base string, kind models.ToolKind, manifest *Manifest) []*models.ToolSpec {
	entries, err := entryFiles(dir)
	if err != nil {
		s.onError(&DirError{Dir: dir, Phase: PhaseLoad, Err: err})
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	parent := filepath.Base(filepath.Dir(dir))
	var specs []*models.ToolSpec
	for _, entry := range entries {
		spec, err := loadLocalFn(entry)
		if err != nil {
			s.onError(&DirError{Dir: dir, Phase: PhaseLoad,
				Err: fmt.Errorf("%s: %w", filepath.Base(entry), err)})
			continue
		}

		leaf := strings.TrimSuffix(filepath.Base(entry), ".go")
		if leaf == "tool" {
			leaf = parent
		}
		s.finish(spec, root, leaf, "-"+string(kind))
		if len(entries) == 1 {
			manifest.apply(spec)
		}
		if err := spec.Validate(); err != nil {
			s.onError(&DirError{Dir: dir, Phase: PhaseValidate, Err: err})
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}

// resolveKind applies the manifest kind or infers one from markers.
// Multiple markers without an explicit kind is an error; no markers and
// no manifest just means this directory holds no tool.
func (s *Scanner) resolveKind(dir string, manifest *Manifest) (models.ToolKind, error) {
	if manifest != nil && manifest.Kind != "" {
		kind := models.ToolKind(manifest.Kind)
		if !kind.Valid() {
			return "", fmt.Errorf("unknown kind %q", manifest.Kind)
		}
		return kind, nil
	}

	var inferred []models.ToolKind
	for marker, kind := range map[string]models.ToolKind{
		skillMarker:    models.KindSkill,
		workflowMarker: models.KindWorkflow,
		rpcMarker:      models.KindRPCTool,
	} {
		if fileExists(filepath.Join(dir, marker)) {
			inferred = append(inferred, kind)
		}
	}
	entry := entryMarker
	if manifest != nil && manifest.EntryPoint != "" {
		entry = manifest.EntryPoint
	}
	if fileExists(filepath.Join(dir, entry)) {
		inferred = append(inferred, models.KindLocalFn)
	}

	switch len(inferred) {
	case 0:
		if manifest == nil {
			return "", nil
		}
		return "", fmt.Errorf("manifest has no kind and no marker file is present")
	case 1:
		return inferred[0], nil
	default:
		sort.Slice(inferred, func(i, j int) bool { return inferred[i] < inferred[j] })
		return "", fmt.Errorf("ambiguous tool directory: markers for %v", inferred)
	}
}

func (s *Scanner) loadKind(kind models.ToolKind, dir, leaf string, manifest *Manifest) (*models.ToolSpec, error) {
	switch kind {
	case models.KindRPCTool:
		return loadRPCTool(dir, leaf)
	case models.KindWorkflow:
		return loadWorkflow(dir, manifest)
	case models.KindSkill:
		return loadSkill(dir)
	case models.KindLocalFn:
		entry := entryMarker
		if manifest != nil && manifest.EntryPoint != "" {
			entry = manifest.EntryPoint
		}
		return loadLocalFn(filepath.Join(dir, entry))
	case models.KindImagePipeline:
		return loadImagePipeline(manifest)
	default:
		return nil, fmt.Errorf("kind %q cannot be discovered from the filesystem", kind)
	}
}

// finish stamps naming and schema defaults a loader left open.
func (s *Scanner) finish(spec *models.ToolSpec, root Root, leaf, suffix string) {
	if spec.Name == "" {
		name := leaf + suffix
		if root.Namespace != "" {
			name = root.Namespace + "/" + name
		}
		spec.Name = name
	}
	if spec.Version == "" {
		spec.Version = s.defaultVersion
	}
	if spec.InputSchema == nil {
		spec.InputSchema = map[string]any{"type": "object"}
	}
	if spec.OutputSchema == nil {
		spec.OutputSchema = map[string]any{"type": "object"}
	}
}

// entryFiles lists the Go entry modules of a kind-named subfolder.
func entryFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
