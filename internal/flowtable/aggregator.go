package flowtable

import (
	"net"
	"time"

	"netflow9-collector/internal/catalog"
	"netflow9-collector/internal/wire"
)

var (
	zeroIP      = net.IPv4(0, 0, 0, 0)
	broadcastIP = net.IPv4(255, 255, 255, 255)
)

const directedBcastMac uint64 = 0xFFFFFFFFFFFF

// fiveTuple is the canonical identity spec.md §3 uses for flow matching:
// the unordered quadruple of addresses/ports plus protocol. src/dst here
// are whichever orientation the current record carries; canonicalKey below
// normalises it so either direction of a conversation maps to one entry.
type fiveTuple struct {
	srcIP, dstIP     net.IP
	srcPort, dstPort uint16
	protocol         uint8
}

func fieldsFromRecord(rec wire.Record) fiveTuple {
	ft := fiveTuple{srcIP: zeroIP, dstIP: zeroIP}
	if v, ok := rec[catalog.SrcAddr]; ok {
		ft.srcIP = v.IP()
	}
	if v, ok := rec[catalog.DstAddr]; ok {
		ft.dstIP = v.IP()
	}
	if v, ok := rec[catalog.SrcPort]; ok {
		ft.srcPort = uint16(v.Uint64())
	}
	if v, ok := rec[catalog.DstPort]; ok {
		ft.dstPort = uint16(v.Uint64())
	}
	if v, ok := rec[catalog.Protocol]; ok {
		ft.protocol = uint8(v.Uint64())
	}
	return ft
}

// canonicalKey returns a key that is identical for both directions of a
// conversation, satisfying spec.md §3 invariant 2 (bidirectional identity)
// and §8 P2: at most one Flow per sender exists for either orientation of
// the 5-tuple. This is the canonicalisation approach design note §9
// describes as an acceptable alternative to a bidirectional equality scan.
func (f fiveTuple) canonicalKey() string {
	a := endpoint{f.srcIP, f.srcPort}
	b := endpoint{f.dstIP, f.dstPort}
	if a.less(b) {
		return a.String() + "-" + b.String() + protoSuffix(f.protocol)
	}
	return b.String() + "-" + a.String() + protoSuffix(f.protocol)
}

type endpoint struct {
	ip   net.IP
	port uint16
}

func (e endpoint) String() string {
	return e.ip.String() + ":" + itoa(e.port)
}

func (e endpoint) less(o endpoint) bool {
	s := e.String()
	t := o.String()
	return s < t
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	digits := [5]byte{}
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}

func protoSuffix(p uint8) string {
	return "/" + itoa(uint16(p))
}

// classifyTraffic implements spec.md §4.6 step 2: multicast beats
// broadcast beats the directed-broadcast MAC rescue beats unicast.
func classifyTraffic(ft fiveTuple, rec wire.Record) TrafficType {
	if ft.srcIP.IsMulticast() || ft.dstIP.IsMulticast() {
		return Multicast
	}
	if ft.srcIP.Equal(broadcastIP) || ft.dstIP.Equal(broadcastIP) {
		return Broadcast
	}
	if v, ok := rec[catalog.InDstMac]; ok && v.Uint64() == directedBcastMac {
		return Broadcast
	}
	return Unicast
}

// Drain folds every pending decoded record into s's flow table and returns
// the set of flows that changed this cycle (NeedsPersist == true), ready
// for the persistence gateway to write through (spec.md §4.6-4.7). It is
// meant to be called once per ingest cycle.
func (s *Sender) Drain(now time.Time) []*Flow {
	if len(s.pending) == 0 {
		return nil
	}

	changed := make(map[string]*Flow)
	for _, rec := range s.pending {
		ft := fieldsFromRecord(rec)
		trafficType := classifyTraffic(ft, rec)
		key := ft.canonicalKey()

		inOctets := rec[catalog.InOctets].Uint64()
		inPackets := rec[catalog.InPackets].Uint64()

		flow, ok := s.Flows[key]
		if !ok {
			flow = &Flow{
				SrcAddr:      ft.srcIP,
				DstAddr:      ft.dstIP,
				SrcPort:      ft.srcPort,
				DstPort:      ft.dstPort,
				Protocol:     ft.protocol,
				InOctets:     inOctets,
				InPackets:    inPackets,
				TrafficType:  trafficType,
				CreatedAt:    now,
				NeedsPersist: true,
			}
			s.Flows[key] = flow
			changed[key] = flow
			continue
		}

		flow.InOctets += inOctets
		flow.InPackets += inPackets
		flow.TrafficType = trafficType
		flow.pushDelta(now, inOctets, inPackets)
		flow.NeedsPersist = true
		changed[key] = flow
	}

	s.pending = s.pending[:0]

	out := make([]*Flow, 0, len(changed))
	for _, f := range changed {
		out = append(out, f)
	}
	return out
}

// FlowsNeedingPersist returns every flow in s's table with NeedsPersist set,
// not just the ones this cycle's Drain folded. This is what makes a
// transient store write failure recoverable (spec.md §4.7, §7 "Store write
// failure": the flow keeps needs_persist=true and must be retried on a
// later cycle even if that cycle's datagram never touches it again).
func (s *Sender) FlowsNeedingPersist() []*Flow {
	var out []*Flow
	for _, f := range s.Flows {
		if f.NeedsPersist {
			out = append(out, f)
		}
	}
	return out
}
