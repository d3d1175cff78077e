package builtins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/policy"
	"github.com/haasonsaas/toolhub/pkg/models"
)

func newTestAdapter(t *testing.T, config Config) *adapters.CoreAdapter {
	t.Helper()
	adapter := adapters.NewCoreAdapter()
	if err := Register(adapter, config); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return adapter
}

func invoke(t *testing.T, adapter *adapters.CoreAdapter, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	specs, err := adapter.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, spec := range specs {
		if spec.Name == name {
			inv, err := adapter.Invoke(context.Background(), spec, args, models.ExecContext{})
			if err != nil {
				return nil, err
			}
			return inv.Result.(map[string]any), nil
		}
	}
	t.Fatalf("tool %s not registered", name)
	return nil, nil
}

func errorKind(t *testing.T, err error) models.ErrorKind {
	t.Helper()
	var toolErr *models.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %T: %v", err, err)
	}
	return toolErr.Kind
}

func TestRegisterInstallsAllBuiltins(t *testing.T) {
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})
	want := []string{
		"fs.readText", "fs.writeText", "fs.list",
		"http.fetchText", "http.fetchJson",
		"util.now", "util.uuid", "util.hash",
	}
	names := adapter.Names()
	got := make(map[string]bool, len(names))
	for _, name := range names {
		got[name] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing builtin %s (have %v)", name, names)
		}
	}
}

func TestFSReadWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{root}})

	result, err := invoke(t, adapter, "fs.writeText", map[string]any{
		"path":    "notes/report.txt",
		"content": "quarterly numbers",
	})
	if err != nil {
		t.Fatalf("writeText: %v", err)
	}
	written := result["path"].(string)
	if !strings.HasPrefix(written, root) {
		t.Errorf("written path %q escapes root %q", written, root)
	}

	result, err = invoke(t, adapter, "fs.readText", map[string]any{"path": "notes/report.txt"})
	if err != nil {
		t.Fatalf("readText: %v", err)
	}
	if result["content"] != "quarterly numbers" {
		t.Errorf("content = %v", result["content"])
	}

	result, err = invoke(t, adapter, "fs.list", map[string]any{"path": "notes"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	entries := result["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["name"] != "report.txt" {
		t.Errorf("entries = %v", entries)
	}
}

func TestFSReadEscapeDenied(t *testing.T) {
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})

	_, err := invoke(t, adapter, "fs.readText", map[string]any{"path": "../../../etc/passwd"})
	if err == nil {
		t.Fatal("sandbox escape should be denied")
	}
	if kind := errorKind(t, err); kind != models.ErrPathOutsideSandbox {
		t.Errorf("kind = %s, want %s", kind, models.ErrPathOutsideSandbox)
	}
}

func TestFSReadTooLarge(t *testing.T) {
	root := t.TempDir()
	big := filepath.Join(root, "big.txt")
	if err := os.WriteFile(big, []byte(strings.Repeat("x", 64)), 0o644); err != nil {
		t.Fatal(err)
	}

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{root}, MaxFileBytes: 16})
	_, err := invoke(t, adapter, "fs.readText", map[string]any{"path": "big.txt"})
	if kind := errorKind(t, err); kind != models.ErrFileTooLarge {
		t.Errorf("kind = %s, want %s", kind, models.ErrFileTooLarge)
	}
}

func TestHTTPFetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello from upstream")
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})
	result, err := invoke(t, adapter, "http.fetchText", map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("fetchText: %v", err)
	}
	if result["body"] != "hello from upstream" {
		t.Errorf("body = %v", result["body"])
	}
	if result["status"] != 200 {
		t.Errorf("status = %v", result["status"])
	}
}

func TestHTTPFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tempC": 21}`)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})
	result, err := invoke(t, adapter, "http.fetchJson", map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("fetchJson: %v", err)
	}
	data := result["data"].(map[string]any)
	if data["tempC"].(float64) != 21 {
		t.Errorf("data = %v", data)
	}
}

func TestHTTPFetchJSONInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})
	_, err := invoke(t, adapter, "http.fetchJson", map[string]any{"url": server.URL})
	if kind := errorKind(t, err); kind != models.ErrUpstream {
		t.Errorf("kind = %s, want %s", kind, models.ErrUpstream)
	}
}

func TestHTTPFetchTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}, MaxHTTPBytes: 512})
	_, err := invoke(t, adapter, "http.fetchText", map[string]any{"url": server.URL})
	if kind := errorKind(t, err); kind != models.ErrHTTPTooLarge {
		t.Errorf("kind = %s, want %s", kind, models.ErrHTTPTooLarge)
	}
}

func TestHTTPFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, "too slow")
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{
		SandboxRoots: []string{t.TempDir()},
		HTTPTimeout:  20 * time.Millisecond,
	})
	_, err := invoke(t, adapter, "http.fetchText", map[string]any{"url": server.URL})
	if kind := errorKind(t, err); kind != models.ErrHTTPTimeout {
		t.Errorf("kind = %s, want %s", kind, models.ErrHTTPTimeout)
	}
}

func TestHTTPFetchBlockedByCIDRGuard(t *testing.T) {
	guard, err := policy.NewCIDRGuard([]string{"169.254.0.0/16"})
	if err != nil {
		t.Fatal(err)
	}
	// internal.attacker.example resolves into the link-local metadata range.
	guard.WithLookup(func(_ context.Context, host string) ([]net.IP, error) {
		if host == "internal.attacker.example" {
			return []net.IP{net.ParseIP("169.254.169.254")}, nil
		}
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	})

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}, CIDRGuard: guard})
	_, err = invoke(t, adapter, "http.fetchText", map[string]any{
		"url": "http://internal.attacker.example/latest/meta-data",
	})
	if kind := errorKind(t, err); kind != models.ErrHTTPDisallowedHost {
		t.Errorf("kind = %s, want %s", kind, models.ErrHTTPDisallowedHost)
	}
}

func TestHTTPFetchNonHTTPScheme(t *testing.T) {
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})
	_, err := invoke(t, adapter, "http.fetchText", map[string]any{"url": "file:///etc/passwd"})
	if kind := errorKind(t, err); kind != models.ErrHTTPDisallowedHost {
		t.Errorf("kind = %s, want %s", kind, models.ErrHTTPDisallowedHost)
	}
}

func TestHTTPFetchLiteralIPBlocked(t *testing.T) {
	guard, err := policy.NewCIDRGuard([]string{"127.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "should never be reached")
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if host, _, _ := net.SplitHostPort(parsed.Host); host != "127.0.0.1" {
		t.Skipf("test server bound to %s", parsed.Host)
	}

	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}, CIDRGuard: guard})
	_, err = invoke(t, adapter, "http.fetchText", map[string]any{"url": server.URL})
	if kind := errorKind(t, err); kind != models.ErrHTTPDisallowedHost {
		t.Errorf("kind = %s, want %s", kind, models.ErrHTTPDisallowedHost)
	}
}

func TestUtilHash(t *testing.T) {
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})

	result, err := invoke(t, adapter, "util.hash", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	// sha256("hello")
	if result["digest"] != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("digest = %v", result["digest"])
	}

	result, err = invoke(t, adapter, "util.hash", map[string]any{"text": "hello", "encoding": "base64"})
	if err != nil {
		t.Fatalf("hash base64: %v", err)
	}
	if result["digest"] != "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=" {
		t.Errorf("digest = %v", result["digest"])
	}

	_, err = invoke(t, adapter, "util.hash", map[string]any{"text": "x", "encoding": "md5"})
	if kind := errorKind(t, err); kind != models.ErrValidation {
		t.Errorf("kind = %s, want %s", kind, models.ErrValidation)
	}
}

func TestUtilNowAndUUID(t *testing.T) {
	adapter := newTestAdapter(t, Config{SandboxRoots: []string{t.TempDir()}})

	result, err := invoke(t, adapter, "util.now", nil)
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, result["iso"].(string)); err != nil {
		t.Errorf("iso = %v: %v", result["iso"], err)
	}

	first, err := invoke(t, adapter, "util.uuid", nil)
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	second, _ := invoke(t, adapter, "util.uuid", nil)
	if first["uuid"] == second["uuid"] {
		t.Errorf("uuid not unique: %v", first["uuid"])
	}
}
