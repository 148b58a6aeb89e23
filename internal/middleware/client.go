// Package middleware holds the huma middleware chain: request metadata,
// rate limiting and the auth gate.
package middleware

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Proxies is the set of reverse proxies whose forwarding headers are
// believed. A nil or empty set trusts nobody: the client is the peer.
type Proxies struct {
	prefixes []netip.Prefix
}

// NewProxies parses addresses or CIDR ranges such as "10.0.0.0/8".
func NewProxies(entries []string) (*Proxies, error) {
	p := &Proxies{}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}

			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))

			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}

		p.prefixes = append(p.prefixes, prefix.Masked())
	}

	return p, nil
}

func (p *Proxies) trusts(ip string) bool {
	if p == nil {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	addr = addr.Unmap()

	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// ClientIP is the peer address unless the peer is a trusted proxy. Behind
// a trusted proxy, X-Forwarded-For is read right to left and the first
// untrusted hop is the client; X-Real-IP is the fallback.
func (p *Proxies) ClientIP(ctx huma.Context) string {
	peer := remoteHost(ctx)
	if !p.trusts(peer) {
		return peer
	}

	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !p.trusts(hop) {
				return hop
			}
		}

		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}

// Origin is the scheme and host the client addressed. Forwarded scheme and
// host are only believed from a trusted proxy.
func (p *Proxies) Origin(ctx huma.Context) string {
	scheme := "http"
	if ctx.TLS() != nil {
		scheme = "https"
	}

	host := ctx.Host()

	if p.trusts(remoteHost(ctx)) {
		if proto := ctx.Header("X-Forwarded-Proto"); proto != "" {
			first, _, _ := strings.Cut(proto, ",")
			scheme = strings.ToLower(strings.TrimSpace(first))
		}

		if fwd := ctx.Header("X-Forwarded-Host"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			host = strings.TrimSpace(first)
		}
	}

	return scheme + "://" + host
}

func remoteHost(ctx huma.Context) string {
	addr := ctx.RemoteAddr()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
