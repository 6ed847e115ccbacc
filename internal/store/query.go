package store

import (
	"encoding/json"
	"fmt"
)

// SortKey selects the ordering top_flows applies, per spec.md §4.8.
type SortKey int

const (
	SortNone SortKey = iota
	SortBytes
	SortPackets
)

// FlowRow is one row of the reader query surface's data shape (spec.md §4.8:
// "return data shapes, not presentation").
type FlowRow struct {
	ID          int64
	SenderIP    string
	SrcAddr     string
	DstAddr     string
	Protocol    int
	SrcPort     int
	DstPort     int
	InOctets    int64
	InPkts      int64
	TrafficType string
}

// TopFlows returns up to limit flow rows, sorted by sort and optionally
// restricted to Unicast traffic (spec.md §4.8 top_flows).
func (s *Store) TopFlows(limit int, sort SortKey, unicastOnly bool) ([]FlowRow, error) {
	q := `SELECT id, sender_ip, src_addr, dst_addr, protocol, src_port, dst_port, in_octets, in_pkts, traffic_type FROM flows`
	if unicastOnly {
		q += ` WHERE traffic_type = 'Unicast'`
	}
	switch sort {
	case SortBytes:
		q += ` ORDER BY in_octets DESC`
	case SortPackets:
		q += ` ORDER BY in_pkts DESC`
	}
	q += ` LIMIT ?`

	rows, err := s.db.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top flows: %w", err)
	}
	defer rows.Close()
	return scanFlowRows(rows)
}

// AllFlowsForHost returns every row where ip appears on either side of the
// conversation (spec.md §4.8 all_flows_json).
func (s *Store) AllFlowsForHost(ip string) ([]FlowRow, error) {
	const q = `SELECT id, sender_ip, src_addr, dst_addr, protocol, src_port, dst_port, in_octets, in_pkts, traffic_type
		FROM flows WHERE src_addr = ? OR dst_addr = ?`

	rows, err := s.db.Query(q, ip, ip)
	if err != nil {
		return nil, fmt.Errorf("store: flows for host %s: %w", ip, err)
	}
	defer rows.Close()
	return scanFlowRows(rows)
}

// AllFlowsJSON is AllFlowsForHost marshalled to JSON, matching the original
// reader surface's external JSON shape.
func (s *Store) AllFlowsJSON(ip string) ([]byte, error) {
	rows, err := s.AllFlowsForHost(ip)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rows)
}

func scanFlowRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]FlowRow, error) {
	var out []FlowRow
	for rows.Next() {
		var r FlowRow
		if err := rows.Scan(&r.ID, &r.SenderIP, &r.SrcAddr, &r.DstAddr, &r.Protocol,
			&r.SrcPort, &r.DstPort, &r.InOctets, &r.InPkts, &r.TrafficType); err != nil {
			return nil, fmt.Errorf("store: scan flow row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Aggregate is one bucket of a top-N aggregation: a label (host, port,
// protocol number as a string) and its summed byte count.
type Aggregate struct {
	Label string
	Bytes int64
}

const topNBuckets = 10

// interestingPortCeiling is the boundary below which a src_port is treated
// as the "interesting" port for TopByPort; above it, the dst_port is used
// instead (spec.md §4.8 "By port").
const interestingPortCeiling = 32768

// TopByBytes groups by src_ip and sums bytes, returning the top 10 buckets
// (spec.md §4.8 "By host"). The fold runs client-side, like the other
// top-N helpers; every row is counted, no ports are excluded.
func (s *Store) TopByBytes() ([]Aggregate, error) {
	rows, err := s.db.Query(`SELECT src_addr, in_octets FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("store: top by bytes: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var addr string
		var octets int64
		if err := rows.Scan(&addr, &octets); err != nil {
			return nil, fmt.Errorf("store: scan top by bytes: %w", err)
		}
		totals[addr] += octets
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(totals), nil
}

// TopByPackets groups by src_ip and sums packet counts.
func (s *Store) TopByPackets() ([]Aggregate, error) {
	rows, err := s.db.Query(`SELECT src_addr, in_pkts FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("store: top by packets: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var addr string
		var pkts int64
		if err := rows.Scan(&addr, &pkts); err != nil {
			return nil, fmt.Errorf("store: scan top by packets: %w", err)
		}
		totals[addr] += pkts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(totals), nil
}

// TopByPort groups by the "interesting" port (src_port below 32768,
// otherwise dst_port) and sums bytes.
func (s *Store) TopByPort() ([]Aggregate, error) {
	rows, err := s.db.Query(`SELECT src_port, dst_port, in_octets FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("store: top by port: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var srcPort, dstPort int
		var octets int64
		if err := rows.Scan(&srcPort, &dstPort, &octets); err != nil {
			return nil, fmt.Errorf("store: scan top by port: %w", err)
		}
		port := srcPort
		if port >= interestingPortCeiling {
			port = dstPort
		}
		totals[fmt.Sprintf("%d", port)] += octets
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(totals), nil
}

// TopByProtocol groups by protocol number and sums bytes.
func (s *Store) TopByProtocol() ([]Aggregate, error) {
	rows, err := s.db.Query(`SELECT protocol, in_octets FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("store: top by protocol: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var proto int
		var octets int64
		if err := rows.Scan(&proto, &octets); err != nil {
			return nil, fmt.Errorf("store: scan top by protocol: %w", err)
		}
		totals[fmt.Sprintf("%d", proto)] += octets
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(totals), nil
}

// topN sorts totals descending by value and returns at most topNBuckets
// entries, using insertion into a small slice rather than pulling in a
// sort-package dependency for ten elements.
func topN(totals map[string]int64) []Aggregate {
	out := make([]Aggregate, 0, len(totals))
	for label, bytes := range totals {
		out = append(out, Aggregate{Label: label, Bytes: bytes})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Bytes > out[j-1].Bytes; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > topNBuckets {
		out = out[:topNBuckets]
	}
	return out
}
