// Package builtins provides the core tool set: sandboxed filesystem
// access, SSRF-guarded HTTP fetchers, and small utility tools. They are
// registered on the core adapter at hub startup and survive discovery
// re-scans.
package builtins

import (
	"time"

	"github.com/haasonsaas/toolhub/internal/adapters"
	"github.com/haasonsaas/toolhub/internal/policy"
)

// Config tunes the built-in tools.
type Config struct {
	// SandboxRoots are the directories filesystem tools may touch.
	SandboxRoots []string

	// MaxFileBytes caps file reads and writes. Default 5 MiB.
	MaxFileBytes int64

	// MaxHTTPBytes caps fetched response bodies. Default 5 MiB.
	MaxHTTPBytes int64

	// HTTPTimeout bounds each fetch. Default 15s.
	HTTPTimeout time.Duration

	// CIDRGuard blocks fetches whose host resolves into a denied range.
	// Nil disables the check.
	CIDRGuard *policy.CIDRGuard
}

func (c Config) withDefaults() Config {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 5 * 1024 * 1024
	}
	if c.MaxHTTPBytes <= 0 {
		c.MaxHTTPBytes = 5 * 1024 * 1024
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Register installs all built-in tools on the core adapter.
func Register(adapter *adapters.CoreAdapter, config Config) error {
	config = config.withDefaults()
	if err := registerFSTools(adapter, config); err != nil {
		return err
	}
	if err := registerHTTPTools(adapter, config); err != nil {
		return err
	}
	return registerUtilTools(adapter)
}
