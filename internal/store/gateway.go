package store

import (
	"fmt"
	"time"

	"netflow9-collector/internal/flowtable"
)

// UpsertSender idempotently registers a sender's IP, grounded on the
// original's INSERT OR IGNORE pattern (spec.md §4.7 upsert_sender).
func (s *Store) UpsertSender(ip string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO senders (ip) VALUES (?)`, ip)
	if err != nil {
		return fmt.Errorf("store: upsert sender %s: %w", ip, err)
	}
	return nil
}

// FlowExists reports whether a row already exists for flow's 5-tuple,
// matching either orientation of the addresses and ports (spec.md §4.7
// flow_exists). A read failure is treated as "does not exist" per spec.md §7
// — the caller falls through to the insert path, worst case producing a
// duplicate row.
func (s *Store) FlowExists(flow *flowtable.Flow) bool {
	const q = `SELECT id FROM flows WHERE
		((src_addr = ? AND dst_addr = ?) OR (src_addr = ? AND dst_addr = ?)) AND
		((src_port = ? AND dst_port = ?) OR (src_port = ? AND dst_port = ?)) AND
		protocol = ?
		LIMIT 1`

	src, dst := flow.SrcAddr.String(), flow.DstAddr.String()
	sp, dp := flow.SrcPort, flow.DstPort

	var id int64
	err := s.db.QueryRow(q, src, dst, dst, src, sp, dp, dp, sp, flow.Protocol).Scan(&id)
	if err != nil {
		return false
	}
	return true
}

// InsertFlow creates a new row for flow, owned by sender_ip, stringifying
// traffic_type (spec.md §4.7 insert_flow).
func (s *Store) InsertFlow(flow *flowtable.Flow, senderIP string, now time.Time) error {
	const q = `INSERT INTO flows
		(sender_ip, src_addr, dst_addr, src_port, dst_port, protocol, in_octets, in_pkts, traffic_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(q, senderIP,
		flow.SrcAddr.String(), flow.DstAddr.String(),
		flow.SrcPort, flow.DstPort, flow.Protocol,
		flow.InOctets, flow.InPackets, flow.TrafficType.String())
	if err != nil {
		return fmt.Errorf("store: insert flow: %w", err)
	}
	return nil
}

// UpdateFlow sets the counters on the row matching flow's exact (not
// bidirectional) orientation — the row created in one direction owns that
// flow (spec.md §4.7 update_flow). The predicate intentionally omits
// sender_ip: the original implementation's update SQL is not sender-scoped
// either, so two senders reporting an identical 5-tuple alias onto the same
// row (spec.md §9 open question, preserved as the source's documented
// behaviour rather than changed).
func (s *Store) UpdateFlow(flow *flowtable.Flow, senderIP string, now time.Time) error {
	const q = `UPDATE flows SET
		in_octets = ?, in_pkts = ?
		WHERE src_addr = ? AND dst_addr = ? AND src_port = ? AND dst_port = ? AND protocol = ?`

	_, err := s.db.Exec(q, flow.InOctets, flow.InPackets,
		flow.SrcAddr.String(), flow.DstAddr.String(),
		flow.SrcPort, flow.DstPort, flow.Protocol)
	if err != nil {
		return fmt.Errorf("store: update flow: %w", err)
	}
	return nil
}

// WriteThrough implements spec.md §4.7's write policy: for flow, call
// FlowExists and branch to insert or update; on success it clears
// needs_persist and marks the flow persisted. On any store error the flow
// keeps needs_persist set so the next ingest cycle retries (spec.md §5, §7).
func (s *Store) WriteThrough(flow *flowtable.Flow, senderIP string, now time.Time) error {
	if s.FlowExists(flow) {
		if err := s.UpdateFlow(flow, senderIP, now); err != nil {
			return err
		}
	} else {
		if err := s.InsertFlow(flow, senderIP, now); err != nil {
			return err
		}
	}
	flow.NeedsPersist = false
	flow.Persisted = true
	return nil
}
