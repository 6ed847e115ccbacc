package flowtable

import (
	"net"
	"testing"
	"time"

	"netflow9-collector/internal/catalog"
	"netflow9-collector/internal/wire"
)

func rec(srcIP, dstIP string, srcPort, dstPort uint16, proto uint8, octets, packets uint64) wire.Record {
	r := make(wire.Record)
	r[catalog.SrcAddr] = ipValue(srcIP)
	r[catalog.DstAddr] = ipValue(dstIP)
	r[catalog.SrcPort] = uintValue(uint64(srcPort))
	r[catalog.DstPort] = uintValue(uint64(dstPort))
	r[catalog.Protocol] = uintValue(uint64(proto))
	r[catalog.InOctets] = uintValue(octets)
	r[catalog.InPackets] = uintValue(packets)
	return r
}

// ipValue and uintValue build wire.Value via the only public surface
// available (decodeField is unexported) — round-trip through the decoder
// with a throwaway template so these tests stay black-box.
func ipValue(ipStr string) wire.Value {
	tmpl := wire.Template{Fields: []wire.FieldDef{{Kind: catalog.SrcAddr, Length: 4}}, Length: 4}
	body := net.ParseIP(ipStr).To4()
	return wire.DecodeDataSet(body, &tmpl)[0][catalog.SrcAddr]
}

func uintValue(v uint64) wire.Value {
	tmpl := wire.Template{Fields: []wire.FieldDef{{Kind: catalog.InOctets, Length: 4}}, Length: 4}
	body := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	return wire.DecodeDataSet(body, &tmpl)[0][catalog.InOctets]
}

func macValue(lowBits uint64) wire.Value {
	tmpl := wire.Template{Fields: []wire.FieldDef{{Kind: catalog.InDstMac, Length: 6}}, Length: 6}
	body := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		body[i] = byte(lowBits)
		lowBits >>= 8
	}
	return wire.DecodeDataSet(body, &tmpl)[0][catalog.InDstMac]
}

// S3 — reverse direction folds into the same flow.
func TestS3ReverseDirectionFolds(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	s.pending = []wire.Record{
		rec("10.0.0.1", "10.0.0.2", 4660, 80, 6, 1000, 10),
	}
	s.Drain(time.Now())

	s.pending = []wire.Record{
		rec("10.0.0.2", "10.0.0.1", 80, 4660, 6, 500, 5),
	}
	changed := s.Drain(time.Now())

	if len(s.Flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(s.Flows))
	}
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed flow, got %d", len(changed))
	}
	f := changed[0]
	if f.InOctets != 1500 || f.InPackets != 15 {
		t.Fatalf("counters = %d/%d, want 1500/15", f.InOctets, f.InPackets)
	}
}

// S4 — directed-broadcast MAC rescue overrides subnet-based classification.
func TestS4BroadcastMacRescue(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	r := rec("10.0.0.1", "10.0.0.255", 0, 0, 17, 100, 1)
	r[catalog.InDstMac] = macValue(0xFFFFFFFFFFFF)
	s.pending = []wire.Record{r}

	changed := s.Drain(time.Now())
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed flow, got %d", len(changed))
	}
	if changed[0].TrafficType != Broadcast {
		t.Fatalf("traffic type = %v, want Broadcast", changed[0].TrafficType)
	}
}

// S5 — unknown template: Sender.DecodeDataSet must refuse to decode and
// enqueue nothing (§8 P3).
func TestS5UnknownTemplateGating(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	ok := s.DecodeDataSet(999, []byte{1, 2, 3, 4})
	if ok {
		t.Fatalf("expected DecodeDataSet to refuse unknown template")
	}
	if len(s.pending) != 0 {
		t.Fatalf("expected no pending records, got %d", len(s.pending))
	}
}

// S6 — throughput estimate: three records 10s apart at 1000 octets each
// yields ~100 bps; a record after a 3901s gap zeroes the rate.
func TestS6ThroughputEstimate(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	base := time.Now()

	mk := func() wire.Record { return rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 1000, 1) }

	s.pending = []wire.Record{mk()}
	s.Drain(base)
	s.pending = []wire.Record{mk()}
	s.Drain(base.Add(10 * time.Second))
	s.pending = []wire.Record{mk()}
	changed := s.Drain(base.Add(20 * time.Second))

	f := changed[0]
	last := f.Deltas[len(f.Deltas)-1]
	if last.BPS < 90 || last.BPS > 110 {
		t.Fatalf("bps = %d, want ~100", last.BPS)
	}

	s.pending = []wire.Record{mk()}
	changed = s.Drain(base.Add(20*time.Second + 3901*time.Second))
	last = changed[0].Deltas[len(changed[0].Deltas)-1]
	if last.BPS != 0 || last.PPS != 0 {
		t.Fatalf("expected zeroed rate after idle gap, got bps=%d pps=%d", last.BPS, last.PPS)
	}
}

// P1 — monotonicity.
func TestP1Monotonicity(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	s.pending = []wire.Record{rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 100, 1)}
	s.Drain(time.Now())
	prevOctets, prevPackets := s.Flows[onlyKey(s)].InOctets, s.Flows[onlyKey(s)].InPackets

	s.pending = []wire.Record{rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 50, 1)}
	s.Drain(time.Now())
	f := s.Flows[onlyKey(s)]
	if f.InOctets < prevOctets || f.InPackets < prevPackets {
		t.Fatalf("counters decreased: %d/%d -> %d/%d", prevOctets, prevPackets, f.InOctets, f.InPackets)
	}
}

// P2 — bidirectional uniqueness: many records in both directions still
// produce exactly one flow.
func TestP2BidirectionalUniqueness(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	for i := 0; i < 5; i++ {
		s.pending = append(s.pending,
			rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 1),
			rec("10.0.0.2", "10.0.0.1", 2, 1, 6, 10, 1),
		)
	}
	s.Drain(time.Now())
	if len(s.Flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(s.Flows))
	}
}

// P5 — replaying the same datagram's records once must not double-count
// within that single aggregation cycle beyond what was actually received.
func TestP5NoDoubleCountWithinOneDatagram(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	s.pending = []wire.Record{
		rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 100, 1),
		rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 100, 1),
	}
	changed := s.Drain(time.Now())
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed flow, got %d", len(changed))
	}
	if changed[0].InOctets != 200 {
		t.Fatalf("InOctets = %d, want 200 (sum of both records, not more)", changed[0].InOctets)
	}
}

// TestFlowsNeedingPersistSurvivesAcrossCycles covers spec.md §7's "Store
// write failure" row: a flow whose needs_persist is still true must show up
// in FlowsNeedingPersist on a later cycle even when that cycle's Drain has
// no pending records for it at all (i.e. Drain's own return value must not
// be the only way the persistence gateway learns about it).
func TestFlowsNeedingPersistSurvivesAcrossCycles(t *testing.T) {
	s := newSender(net.ParseIP("192.0.2.1"))
	s.pending = []wire.Record{rec("10.0.0.1", "10.0.0.2", 1, 2, 6, 100, 1)}
	s.Drain(time.Now())

	flow := s.Flows[onlyKey(s)]
	if !flow.NeedsPersist {
		t.Fatalf("expected NeedsPersist=true right after Drain")
	}

	// Simulate a failed write: needs_persist stays true, set back by the
	// caller exactly as ingest.processDatagram does on a store error.
	flow.NeedsPersist = true

	// A later cycle with no pending records at all (nothing re-touches this
	// flow) must still surface it for retry.
	s.Drain(time.Now())
	stale := s.FlowsNeedingPersist()
	if len(stale) != 1 || stale[0] != flow {
		t.Fatalf("expected the stale flow to still need persisting, got %d flows", len(stale))
	}
}

func onlyKey(s *Sender) string {
	for k := range s.Flows {
		return k
	}
	return ""
}
