package flowtable

import (
	"fmt"
	"io"
	"net"
	"sync"

	"netflow9-collector/internal/wire"
)

// Sender holds all per-source-IP state: its active templates, the queue of
// records decoded but not yet folded into flows, and its live flow table
// (spec.md §4.5, §3). A Sender is created on first datagram from a new
// source and is never garbage-collected within a single run — NetFlow
// sender lifecycle management is an explicit non-goal (spec.md §1).
type Sender struct {
	IP net.IP

	templates map[uint16]*wire.Template
	pending   []wire.Record
	Flows     map[string]*Flow
}

func newSender(ip net.IP) *Sender {
	return &Sender{
		IP:        ip,
		templates: make(map[uint16]*wire.Template),
		Flows:     make(map[string]*Flow),
	}
}

// InstallTemplates records every template from a decoded template-set.
// Re-advertisement of an existing template_id overwrites it outright —
// exporters are the authority on template content, there is no version
// vector (spec.md §4.3).
func (s *Sender) InstallTemplates(templates []wire.Template) {
	for i := range templates {
		t := templates[i]
		s.templates[t.ID] = &t
	}
}

// DecodeDataSet decodes a data-set body against this sender's template for
// templateID and enqueues the resulting records for the next aggregation
// cycle. It returns false (and enqueues nothing) when no such template has
// been learned yet — spec.md §3 invariant 1 / §8 P3: a data record can be
// decoded only if its (sender_ip, template_id) is known.
func (s *Sender) DecodeDataSet(templateID uint16, body []byte) bool {
	tmpl, ok := s.templates[templateID]
	if !ok {
		return false
	}
	s.pending = append(s.pending, wire.DecodeDataSet(body, tmpl)...)
	return true
}

// LogSummary writes a one-line-per-flow human-readable dump of this
// sender's live flow table to out, for --headless mode in place of a live
// table.
func (s *Sender) LogSummary(out io.Writer) {
	fmt.Fprintf(out, "sender %s: %d flows\n", s.IP, len(s.Flows))
	for _, f := range s.Flows {
		fmt.Fprintf(out, "  %s:%d -> %s:%d/%d  %d bytes  %d pkts  %s\n",
			f.SrcAddr, f.SrcPort, f.DstAddr, f.DstPort, f.Protocol,
			f.InOctets, f.InPackets, f.TrafficType)
	}
}

// Registry is the ingest context's per-source-IP state. It is confined to
// the ingest context and is never shared across goroutines — cross-context
// communication happens exclusively through the persistence gateway
// (spec.md §5). Resolve, SenderIPs and Sender all take one mutex, so the
// sender map can be read from outside the ingest loop (e.g. a headless
// summary command); the Senders themselves are not locked.
type Registry struct {
	mu      sync.Mutex
	senders map[string]*Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]*Sender)}
}

// Resolve returns the Sender for ip, canonicalising v4-mapped v6 addresses
// to their v4 form first (spec.md §4.5), creating one if this is the first
// datagram seen from that source. The second return value is true when a
// new Sender was created.
func (r *Registry) Resolve(ip net.IP) (*Sender, bool) {
	canon := CanonicalizeIP(ip)
	key := canon.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.senders[key]; ok {
		return s, false
	}
	s := newSender(canon)
	r.senders[key] = s
	return s, true
}

// SenderIPs returns the IP of every known sender.
func (r *Registry) SenderIPs() []net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()

	ips := make([]net.IP, 0, len(r.senders))
	for _, s := range r.senders {
		ips = append(ips, s.IP)
	}
	return ips
}

// Sender returns the registered Sender for ip, if any, without creating one.
func (r *Registry) Sender(ip net.IP) (*Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.senders[CanonicalizeIP(ip).String()]
	return s, ok
}

// CanonicalizeIP reduces a v4-in-v6 mapped address to its plain v4 form so
// that a sender seen over an IPv4-mapped socket and one seen over a bare
// IPv4 socket are treated as the same source (spec.md §4.5).
func CanonicalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}
