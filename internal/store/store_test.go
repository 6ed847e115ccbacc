package store

import (
	"net"
	"testing"
	"time"

	"netflow9-collector/internal/flowtable"
)

func testFlow(src, dst string, srcPort, dstPort uint16, proto uint8, octets, pkts uint64) *flowtable.Flow {
	return &flowtable.Flow{
		SrcAddr:     net.ParseIP(src),
		DstAddr:     net.ParseIP(dst),
		SrcPort:     srcPort,
		DstPort:     dstPort,
		Protocol:    proto,
		InOctets:    octets,
		InPackets:   pkts,
		TrafficType: flowtable.Unicast,
	}
}

func TestSchemaAndForeignKeys(t *testing.T) {
	s, err := Open(ModeMemory, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.UpsertSender("192.0.2.1"); err != nil {
		t.Fatalf("UpsertSender: %v", err)
	}
	if err := s.UpsertSender("192.0.2.1"); err != nil {
		t.Fatalf("UpsertSender (idempotent): %v", err)
	}

	// Foreign keys are enforced: a flow naming an unregistered sender is
	// rejected.
	orphan := testFlow("10.0.0.1", "10.0.0.2", 1, 2, 6, 1, 1)
	if err := s.InsertFlow(orphan, "192.0.2.99", time.Now()); err == nil {
		t.Fatalf("expected InsertFlow with an unregistered sender to fail")
	}
}

func TestS2InsertThenS3Update(t *testing.T) {
	s, err := Open(ModeMemory, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.UpsertSender("203.0.113.1"); err != nil {
		t.Fatalf("UpsertSender: %v", err)
	}

	flow := testFlow("10.0.0.1", "10.0.0.2", 4660, 80, 6, 1000, 10)
	now := time.Now()

	if s.FlowExists(flow) {
		t.Fatalf("flow should not exist yet")
	}
	if err := s.WriteThrough(flow, "203.0.113.1", now); err != nil {
		t.Fatalf("WriteThrough (insert): %v", err)
	}
	if flow.NeedsPersist {
		t.Fatalf("NeedsPersist should be cleared after write-through")
	}

	rows, err := s.TopFlows(10, SortNone, false)
	if err != nil {
		t.Fatalf("TopFlows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	// S3: reverse-direction orientation must still be found as existing.
	reverse := testFlow("10.0.0.2", "10.0.0.1", 80, 4660, 6, 500, 5)
	if !s.FlowExists(reverse) {
		t.Fatalf("expected FlowExists to find the row under the reverse orientation")
	}
	// The aggregator folds the reverse record into the flow that owns the
	// row, keeping its original orientation; that flow is what gets written.
	flow.InOctets += reverse.InOctets
	flow.InPackets += reverse.InPackets
	flow.NeedsPersist = true
	if err := s.WriteThrough(flow, "203.0.113.1", now); err != nil {
		t.Fatalf("WriteThrough (update): %v", err)
	}

	rows, err = s.TopFlows(10, SortNone, false)
	if err != nil {
		t.Fatalf("TopFlows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected update not insert, got %d rows", len(rows))
	}
	if rows[0].InOctets != 1500 || rows[0].InPkts != 15 {
		t.Fatalf("counters = %d/%d, want 1500/15", rows[0].InOctets, rows[0].InPkts)
	}
	// The stored orientation belongs to the row that was first created.
	if rows[0].SrcAddr != "10.0.0.1" || rows[0].DstAddr != "10.0.0.2" {
		t.Fatalf("orientation changed on update: %s -> %s", rows[0].SrcAddr, rows[0].DstAddr)
	}
}

func TestTopFlowsSortAndFilter(t *testing.T) {
	s, err := Open(ModeMemory, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	s.UpsertSender("198.51.100.1")

	small := testFlow("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 1)
	big := testFlow("10.0.0.3", "10.0.0.4", 1, 2, 6, 9000, 90)
	big.TrafficType = flowtable.Broadcast

	s.WriteThrough(small, "198.51.100.1", time.Now())
	s.WriteThrough(big, "198.51.100.1", time.Now())

	rows, err := s.TopFlows(10, SortBytes, false)
	if err != nil {
		t.Fatalf("TopFlows: %v", err)
	}
	if len(rows) != 2 || rows[0].InOctets != 9000 {
		t.Fatalf("expected descending-by-bytes order, got %+v", rows)
	}

	rows, err = s.TopFlows(10, SortNone, true)
	if err != nil {
		t.Fatalf("TopFlows unicast-only: %v", err)
	}
	if len(rows) != 1 || rows[0].TrafficType != "Unicast" {
		t.Fatalf("expected unicast-only filter to exclude the broadcast flow, got %+v", rows)
	}
}

func TestFlowExistsReadFailureTreatedAsNotFound(t *testing.T) {
	s, err := Open(ModeMemory, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close() // force every subsequent query to fail

	flow := testFlow("10.0.0.1", "10.0.0.2", 1, 2, 6, 1, 1)
	if s.FlowExists(flow) {
		t.Fatalf("expected FlowExists to report false on a read failure, per spec.md error handling")
	}
}

func TestTopByAggregations(t *testing.T) {
	s, err := Open(ModeMemory, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	s.UpsertSender("198.51.100.1")

	flows := []*flowtable.Flow{
		testFlow("10.0.0.1", "10.0.0.2", 80, 5000, 6, 100, 1),
		testFlow("10.0.0.1", "10.0.0.3", 40000, 22, 6, 200, 2),
		testFlow("10.0.0.5", "10.0.0.6", 53, 6000, 17, 300, 3),
	}
	for _, f := range flows {
		if err := s.WriteThrough(f, "198.51.100.1", time.Now()); err != nil {
			t.Fatalf("WriteThrough: %v", err)
		}
	}

	byBytes, err := s.TopByBytes()
	if err != nil {
		t.Fatalf("TopByBytes: %v", err)
	}
	if len(byBytes) == 0 {
		t.Fatalf("expected at least one bucket")
	}

	byProto, err := s.TopByProtocol()
	if err != nil {
		t.Fatalf("TopByProtocol: %v", err)
	}
	total := int64(0)
	for _, a := range byProto {
		total += a.Bytes
	}
	if total != 600 {
		t.Fatalf("protocol totals sum to %d, want 600", total)
	}

	byPort, err := s.TopByPort()
	if err != nil {
		t.Fatalf("TopByPort: %v", err)
	}
	if len(byPort) == 0 {
		t.Fatalf("expected at least one port bucket")
	}
}
