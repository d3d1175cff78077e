// Package policy gates tool invocations: capability coverage, filesystem
// sandboxing, URL allow/deny lists, and destructive-parameter inspection.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Config configures the policy engine.
type Config struct {
	// SandboxRoots are the directories path-like arguments must resolve into.
	SandboxRoots []string `yaml:"sandbox_roots"`

	// URLAllowList holds regex patterns; when non-empty, a URL must match at
	// least one. Applied after the deny list.
	URLAllowList []string `yaml:"url_allow_list"`

	// URLDenyList holds regex patterns; a match denies the URL outright.
	URLDenyList []string `yaml:"url_deny_list"`

	// BlockedCIDRs are network prefixes (IPv4 and IPv6) that resolved hosts
	// may never fall into. Enforced by the core HTTP tools.
	BlockedCIDRs []string `yaml:"blocked_cidrs"`
}

// Decision is the outcome of a policy check. Err carries the underlying
// failure when a specific rule produced one (sandbox, URL guard); its error
// kind survives Enforce.
type Decision struct {
	Allowed             bool
	Reason              string
	MissingCapabilities []models.Capability
	Err                 error
}

// Engine evaluates invocation policy. Construction compiles the URL pattern
// lists once; a bad pattern surfaces at startup, not per call.
type Engine struct {
	config    Config
	allow     []*regexp.Regexp
	deny      []*regexp.Regexp
	cidrGuard *CIDRGuard
}

// NewEngine builds a policy engine from config.
func NewEngine(config Config) (*Engine, error) {
	e := &Engine{config: config}
	for _, pattern := range config.URLDenyList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("deny pattern %q: %w", pattern, err)
		}
		e.deny = append(e.deny, re)
	}
	for _, pattern := range config.URLAllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("allow pattern %q: %w", pattern, err)
		}
		e.allow = append(e.allow, re)
	}
	guard, err := NewCIDRGuard(config.BlockedCIDRs)
	if err != nil {
		return nil, err
	}
	e.cidrGuard = guard
	return e, nil
}

// CIDRGuard returns the blocked-network guard for use by the core HTTP tools.
func (e *Engine) CIDRGuard() *CIDRGuard { return e.cidrGuard }

// pathKeys and urlKeys identify argument names subject to sandbox and URL
// checks. Matching is by exact key or suffix (e.g. "sourcePath").
var (
	pathKeys = []string{"path", "dest", "file", "dir", "src", "target"}
	urlKeys  = []string{"url", "uri", "endpoint"}
	sqlKeys  = []string{"sql", "query"}
)

// Check evaluates every policy rule against the enriched args. The first
// failing rule determines the decision.
func (e *Engine) Check(spec *models.ToolSpec, args map[string]any, ctx *models.ExecContext) Decision {
	// 1. Capability coverage. danger:destructive is never implicit.
	var missing []models.Capability
	for _, required := range spec.Capabilities {
		if !ctx.HasPermission(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return Decision{
			Allowed:             false,
			Reason:              fmt.Sprintf("missing capabilities: %v", missing),
			MissingCapabilities: missing,
		}
	}

	// 2. Path sandboxing over path-like string args.
	for key, value := range args {
		if !keyMatches(key, pathKeys) {
			continue
		}
		raw, ok := value.(string)
		if !ok || raw == "" {
			continue
		}
		if _, err := ResolveInSandbox(raw, e.config.SandboxRoots); err != nil {
			return Decision{Allowed: false, Reason: fmt.Sprintf("arg %q: %v", key, err), Err: err}
		}
	}

	// 3. URL gating for tools that declare network access.
	if spec.HasCapability(models.CapNetwork) {
		for key, value := range args {
			if !keyMatches(key, urlKeys) {
				continue
			}
			raw, ok := value.(string)
			if !ok || raw == "" {
				continue
			}
			if err := e.checkURL(raw); err != nil {
				return Decision{Allowed: false, Reason: fmt.Sprintf("arg %q: %v", key, err), Err: err}
			}
		}
	}

	// 4. Shallow parameter inspection for destructive SQL.
	if !ctx.HasPermission(models.CapDestructive) {
		for key, value := range args {
			if !keyMatches(key, sqlKeys) {
				continue
			}
			raw, ok := value.(string)
			if !ok {
				continue
			}
			upper := strings.ToUpper(raw)
			if strings.Contains(upper, "DROP") || strings.Contains(upper, "TRUNCATE") {
				return Decision{
					Allowed: false,
					Reason:  fmt.Sprintf("arg %q contains a destructive SQL keyword; requires %s", key, models.CapDestructive),
				}
			}
		}
	}

	return Decision{Allowed: true}
}

// Enforce runs Check and converts a denial into an error. When the failing
// rule produced a typed error (PATH_OUTSIDE_SANDBOX from the sandbox) that
// error is returned unchanged so callers see the specific kind; everything
// else becomes POLICY_DENIED.
func (e *Engine) Enforce(spec *models.ToolSpec, args map[string]any, ctx *models.ExecContext) error {
	decision := e.Check(spec, args, ctx)
	if decision.Allowed {
		return nil
	}
	var toolErr *models.ToolError
	if errors.As(decision.Err, &toolErr) {
		return toolErr
	}
	details := map[string]any{}
	if len(decision.MissingCapabilities) > 0 {
		details["missingCapabilities"] = decision.MissingCapabilities
	}
	return models.NewToolError(models.ErrPolicyDenied, decision.Reason, details)
}

// keyMatches reports whether an argument key names one of the sensitive
// candidates, either exactly ("path") or as a suffix at a word boundary
// ("src_path", "sourcePath").
func keyMatches(key string, candidates []string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range candidates {
		if lower == candidate {
			return true
		}
		if strings.HasSuffix(lower, candidate) {
			boundary := len(key) - len(candidate)
			if boundary > 0 && (key[boundary-1] == '_' || (key[boundary] >= 'A' && key[boundary] <= 'Z')) {
				return true
			}
		}
	}
	return false
}
