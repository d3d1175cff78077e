package policy

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// checkURL applies the scheme, deny-list, and allow-list rules. CIDR checks
// are separate: they require DNS resolution and are enforced by the core
// HTTP tools through CIDRGuard.
func (e *Engine) checkURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return models.NewToolError(models.ErrPolicyDenied, fmt.Sprintf("invalid URL %q", raw), nil)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return models.NewToolError(models.ErrPolicyDenied,
			fmt.Sprintf("scheme %q is not allowed; only http and https", parsed.Scheme), nil)
	}
	for _, re := range e.deny {
		if re.MatchString(raw) {
			return models.NewToolError(models.ErrPolicyDenied,
				fmt.Sprintf("URL matches deny pattern %q", re.String()), nil)
		}
	}
	if len(e.allow) > 0 {
		for _, re := range e.allow {
			if re.MatchString(raw) {
				return nil
			}
		}
		return models.NewToolError(models.ErrPolicyDenied, "URL matches no allow pattern", nil)
	}
	return nil
}

// CIDRGuard blocks hosts whose resolved addresses fall into configured
// network prefixes. A DNS resolution failure is itself a denial: an
// unresolvable host cannot be proven safe.
type CIDRGuard struct {
	blocked []*net.IPNet

	// lookupIP is swappable for tests.
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

// NewCIDRGuard parses the blocked prefixes.
func NewCIDRGuard(cidrs []string) (*CIDRGuard, error) {
	guard := &CIDRGuard{
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, 0, len(addrs))
			for _, addr := range addrs {
				ips = append(ips, addr.IP)
			}
			return ips, nil
		},
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("blocked CIDR %q: %w", cidr, err)
		}
		guard.blocked = append(guard.blocked, network)
	}
	return guard, nil
}

// WithLookup overrides DNS resolution (tests).
func (g *CIDRGuard) WithLookup(fn func(ctx context.Context, host string) ([]net.IP, error)) *CIDRGuard {
	g.lookupIP = fn
	return g
}

// CheckHost resolves the host and denies when any resolved address lies in
// a blocked prefix. Literal IPs skip resolution.
func (g *CIDRGuard) CheckHost(ctx context.Context, host string) error {
	if len(g.blocked) == 0 {
		return nil
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := g.lookupIP(ctx, host)
		if err != nil {
			return models.NewToolError(models.ErrHTTPDisallowedHost,
				fmt.Sprintf("resolve %q: %v", host, err), nil)
		}
		ips = resolved
	}
	for _, ip := range ips {
		for _, network := range g.blocked {
			if network.Contains(ip) {
				return models.NewToolError(models.ErrHTTPDisallowedHost,
					fmt.Sprintf("host %q resolves to blocked address %s (%s)", host, ip, network), nil)
			}
		}
	}
	return nil
}

// CheckURL parses the URL and applies CheckHost to its hostname.
func (g *CIDRGuard) CheckURL(ctx context.Context, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return models.NewToolError(models.ErrHTTPDisallowedHost, fmt.Sprintf("invalid URL %q", raw), nil)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return models.NewToolError(models.ErrHTTPDisallowedHost,
			fmt.Sprintf("scheme %q is not allowed", parsed.Scheme), nil)
	}
	return g.CheckHost(ctx, parsed.Hostname())
}
