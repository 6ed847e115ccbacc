// Package resolver provides best-effort reverse-DNS hostname enrichment for
// the addresses the viewer displays. It is not part of the ingest or
// persistence path: a lookup failure or timeout never affects flow
// aggregation, it only means a row is shown with a bare IP instead of a
// hostname.
package resolver

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Resolver issues reverse-PTR queries via miekg/dns and caches results.
type Resolver struct {
	mu      sync.RWMutex
	cache   map[string]cacheEntry
	timeout time.Duration
	maxAge  time.Duration
	server  string
}

type cacheEntry struct {
	hostname  string
	timestamp time.Time
	notFound  bool
}

// New creates a Resolver using the system's configured DNS server (read
// from /etc/resolv.conf) with a 500ms per-query timeout and a 5 minute
// cache lifetime.
func New() *Resolver {
	server := "127.0.0.1:53"
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return &Resolver{
		cache:   make(map[string]cacheEntry),
		timeout: 500 * time.Millisecond,
		maxAge:  5 * time.Minute,
		server:  server,
	}
}

// Resolve returns a cached or freshly looked-up hostname for ip, falling
// back to ip.String() when resolution fails or times out.
func (r *Resolver) Resolve(ip net.IP) string {
	if ip == nil {
		return ""
	}
	ipStr := ip.String()

	r.mu.RLock()
	entry, ok := r.cache[ipStr]
	r.mu.RUnlock()
	if ok && time.Since(entry.timestamp) < r.maxAge {
		if entry.notFound {
			return ipStr
		}
		return entry.hostname
	}

	hostname, ok := r.lookup(ip)

	r.mu.Lock()
	r.cache[ipStr] = cacheEntry{hostname: hostname, timestamp: time.Now(), notFound: !ok}
	r.mu.Unlock()

	if !ok {
		return ipStr
	}
	return hostname
}

func reverseName(ip net.IP) (string, bool) {
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0]), true
	}
	v6 := ip.To16()
	if v6 == nil {
		return "", false
	}
	const hexDigits = "0123456789abcdef"
	nibbles := make([]byte, 0, 64)
	for i := len(v6) - 1; i >= 0; i-- {
		nibbles = append(nibbles, hexDigits[v6[i]&0x0f], '.', hexDigits[v6[i]>>4], '.')
	}
	return string(nibbles) + "ip6.arpa.", true
}

func (r *Resolver) lookup(ip net.IP) (string, bool) {
	name, ok := reverseName(ip)
	if !ok {
		return "", false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)
	msg.RecursionDesired = true

	client := &dns.Client{Net: "udp", Timeout: r.timeout}
	resp, _, err := client.Exchange(msg, r.server)
	if err != nil || resp == nil {
		return "", false
	}

	for _, answer := range resp.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			hostname := ptr.Ptr
			if len(hostname) > 0 && hostname[len(hostname)-1] == '.' {
				hostname = hostname[:len(hostname)-1]
			}
			return hostname, true
		}
	}
	return "", false
}

// CacheSize returns the number of entries currently cached, for diagnostics.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Clear empties the hostname cache.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}
