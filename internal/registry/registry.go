// Package registry holds the canonical catalog of tool specs. All adapters
// and discovery paths register through it, and the runtime resolves tools
// from it at invocation time.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Query selects tools in Search. All set criteria must match.
type Query struct {
	// Text is a case-insensitive substring matched against the tool
	// name and description.
	Text string

	// Kind restricts results to one adapter kind.
	Kind models.ToolKind

	// Tags must all be present on the tool.
	Tags []string

	// Capabilities must all be declared by the tool.
	Capabilities []models.Capability
}

// Registry is a concurrency-safe tool catalog. Iteration order is the
// order of first registration, so listings stay stable across refreshes
// that re-register the same tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*models.ToolSpec
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*models.ToolSpec)}
}

// Register validates and stores a spec. Re-registering an existing name
// overwrites the spec but keeps its original position.
func (r *Registry) Register(spec *models.ToolSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.tools[spec.Name] = spec.Clone()
	return nil
}

// BulkRegister registers all specs, stopping at the first invalid one.
func (r *Registry) BulkRegister(specs []*models.ToolSpec) error {
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a tool. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the named spec.
func (r *Registry) Get(name string) (*models.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, exists := r.tools[name]
	if !exists {
		return nil, false
	}
	return spec.Clone(), true
}

// List returns all specs in registration order.
func (r *Registry) List() []*models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Clone())
	}
	return out
}

// Snapshot returns a copy of the catalog keyed by name.
func (r *Registry) Snapshot() map[string]*models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.ToolSpec, len(r.tools))
	for name, spec := range r.tools {
		out[name] = spec.Clone()
	}
	return out
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search returns every tool matching all criteria of the query, in
// registration order. A zero query matches everything.
func (r *Registry) Search(q Query) []*models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	text := strings.ToLower(q.Text)
	var out []*models.ToolSpec
	for _, name := range r.order {
		spec := r.tools[name]
		if q.Kind != "" && spec.Kind != q.Kind {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(spec.Name), text) &&
			!strings.Contains(strings.ToLower(spec.Description), text) {
			continue
		}
		if !hasAllTags(spec, q.Tags) || !hasAllCapabilities(spec, q.Capabilities) {
			continue
		}
		out = append(out, spec.Clone())
	}
	return out
}

// Clear removes every tool.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*models.ToolSpec)
	r.order = nil
}

// Size returns the number of registered tools.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func hasAllTags(spec *models.ToolSpec, tags []string) bool {
	for _, tag := range tags {
		if !spec.HasTag(tag) {
			return false
		}
	}
	return true
}

func hasAllCapabilities(spec *models.ToolSpec, caps []models.Capability) bool {
	for _, cap := range caps {
		if !spec.HasCapability(cap) {
			return false
		}
	}
	return true
}
