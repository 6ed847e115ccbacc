package ingest

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"netflow9-collector/internal/listener"
	"netflow9-collector/internal/store"
)

func be16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func be32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }

func header(count uint16) []byte {
	h := make([]byte, 20)
	binary.BigEndian.PutUint16(h[0:2], 9)
	binary.BigEndian.PutUint16(h[2:4], count)
	binary.BigEndian.PutUint32(h[4:8], 1000)
	binary.BigEndian.PutUint32(h[8:12], 1700000000)
	binary.BigEndian.PutUint32(h[12:16], 1)
	binary.BigEndian.PutUint32(h[16:20], 42)
	return h
}

func templateSet(id uint16, fields [][2]uint16) []byte {
	body := append(be16(id), be16(uint16(len(fields)))...)
	for _, f := range fields {
		body = append(body, be16(f[0])...)
		body = append(body, be16(f[1])...)
	}
	set := append(be16(0), be16(uint16(4+len(body)))...)
	return append(set, body...)
}

func dataSet(setID uint16, body []byte) []byte {
	set := append(be16(setID), be16(uint16(4+len(body)))...)
	return append(set, body...)
}

// TestFullDatagramPipeline drives S1+S2 end to end: a template datagram
// followed by a matching data datagram should leave exactly one persisted
// flow row.
func TestFullDatagramPipeline(t *testing.T) {
	st, err := store.Open(store.ModeMemory, "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	ctx := New(listener.New("127.0.0.1", 0), st)
	srcAddr := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 12345}

	fields := [][2]uint16{{8, 4}, {12, 4}, {4, 1}, {7, 2}, {11, 2}, {1, 4}, {2, 4}}
	tmplDatagram := append(header(1), templateSet(258, fields)...)
	ctx.processDatagram(listener.Packet{Data: tmplDatagram, SourceAddr: srcAddr})

	var body []byte
	body = append(body, net.ParseIP("10.0.0.1").To4()...)
	body = append(body, net.ParseIP("10.0.0.2").To4()...)
	body = append(body, 6)
	body = append(body, be16(4660)...)
	body = append(body, be16(80)...)
	body = append(body, be32(1000)...)
	body = append(body, be32(10)...)
	dataDatagram := append(header(1), dataSet(258, body)...)
	ctx.processDatagram(listener.Packet{Data: dataDatagram, SourceAddr: srcAddr})

	rows, err := st.TopFlows(10, store.SortNone, false)
	if err != nil {
		t.Fatalf("TopFlows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 persisted flow, got %d", len(rows))
	}
	if rows[0].InOctets != 1000 || rows[0].InPkts != 10 {
		t.Fatalf("counters = %d/%d, want 1000/10", rows[0].InOctets, rows[0].InPkts)
	}
}

// TestUnknownTemplateDropsSilently covers S5 through the full pipeline.
func TestUnknownTemplateDropsSilently(t *testing.T) {
	st, err := store.Open(store.ModeMemory, "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	ctx := New(listener.New("127.0.0.1", 0), st)
	srcAddr := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 12345}

	datagram := append(header(1), dataSet(999, []byte{1, 2, 3, 4})...)
	ctx.processDatagram(listener.Packet{Data: datagram, SourceAddr: srcAddr})

	rows, err := st.TopFlows(10, store.SortNone, false)
	if err != nil {
		t.Fatalf("TopFlows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows for unknown template, got %d", len(rows))
	}
}

func TestRunAndStop(t *testing.T) {
	st, err := store.Open(store.ModeMemory, "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	ctx := New(listener.New("127.0.0.1", 18399), st)
	go ctx.Run()
	time.Sleep(20 * time.Millisecond)
	ctx.Stop()
}
