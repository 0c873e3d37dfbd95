package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP rewrites r.RemoteAddr to the client address reported by a
// trusted proxy. Headers are ignored unless the connection itself comes from
// one of trustedCIDRs; entries may be prefixes or bare addresses.
//
// X-Real-IP wins over X-Forwarded-For. The forwarded chain is read right to
// left and the first hop outside the trusted set is taken as the client.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(proxies) > 0 && proxies.contains(remoteAddr(r.RemoteAddr)) {
				if client, ok := proxies.clientFrom(r.Header); ok {
					r.RemoteAddr = client.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type proxySet []netip.Prefix

func parseProxies(cidrs []string) proxySet {
	var set proxySet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			set = append(set, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			slog.Warn("realip: skipping invalid trusted proxy", "cidr", raw, "error", err)
			continue
		}
		addr = addr.Unmap()
		set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set
}

func (s proxySet) contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (s proxySet) clientFrom(h http.Header) (netip.Addr, bool) {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		addr, err := netip.ParseAddr(rip)
		return addr.Unmap(), err == nil
	}

	hops := strings.Split(h.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}
		addr = addr.Unmap()
		if !s.contains(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// remoteAddr parses host:port or a bare address.
func remoteAddr(addr string) netip.Addr {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}
