// Package flowtable implements the per-sender template cache and flow
// aggregator of spec.md §4.5-4.6: the sender registry (C5) that owns active
// templates and the live flow table, and the aggregator (C6) that folds
// decoded records into bidirectional flows with counters, traffic-type
// classification and short-term throughput deltas.
package flowtable

import (
	"fmt"
	"net"
	"time"
)

// TrafficType classifies a flow by its source/destination addresses and,
// for the directed-broadcast rescue, its destination MAC, per spec.md §4.6.
type TrafficType int

const (
	Unicast TrafficType = iota
	Multicast
	Broadcast
)

func (t TrafficType) String() string {
	switch t {
	case Multicast:
		return "Multicast"
	case Broadcast:
		return "Broadcast"
	default:
		return "Unicast"
	}
}

// maxDeltas bounds the delta ring at a recommended 64 entries (spec.md §4.6,
// design note "Delta ring"). Oldest entries are evicted first.
const maxDeltas = 64

// idleThreshold is the Δt beyond which a flow is considered idle and its
// throughput estimate is zeroed rather than computed (spec.md §4.6).
const idleThreshold = 3900 * time.Second

// defaultDeltaWindow is the Δt assumed for a flow's very first delta, when
// there is no second-newest delta to diff against.
const defaultDeltaWindow = 60 * time.Second

// Delta captures one observed increment on a flow plus its derived
// short-term rate. Deltas are attached to the newest observation; they are
// not a running flow-level accumulator.
type Delta struct {
	UpdatedAt time.Time
	DOctets   uint64
	DPackets  uint64
	BPS       uint64
	PPS       uint64
}

// Flow is a bidirectional flow record (spec.md §3). SrcAddr/DstAddr/SrcPort/
// DstPort reflect the orientation of the record that first created the
// flow; later records matching in either direction only update the
// counters, they never swap the stored orientation — this is the row that
// "owns" the conversation for persistence (spec.md §4.7).
type Flow struct {
	SrcAddr     net.IP
	DstAddr     net.IP
	SrcPort     uint16
	DstPort     uint16
	Protocol    uint8
	InOctets    uint64
	InPackets   uint64
	TrafficType TrafficType
	CreatedAt   time.Time

	// NeedsPersist is set whenever counters change and cleared once the
	// persistence gateway has written the row through (spec.md §3
	// invariant 5).
	NeedsPersist bool
	Persisted    bool

	Deltas []Delta
}

// ExactKey identifies the flow's exact (not bidirectional) orientation, the
// key spec.md §4.7's update_flow predicate matches against: a row created
// in one direction is the row owning that flow, and only that exact
// orientation is updated.
func (f *Flow) ExactKey() string {
	return fmt.Sprintf("%s:%d>%s:%d/%d", f.SrcAddr, f.SrcPort, f.DstAddr, f.DstPort, f.Protocol)
}

// pushDelta appends a new delta, recomputes its throughput estimate per
// spec.md §4.6, and evicts the oldest entry once the ring exceeds maxDeltas.
func (f *Flow) pushDelta(now time.Time, dOctets, dPackets uint64) {
	f.Deltas = append(f.Deltas, Delta{UpdatedAt: now, DOctets: dOctets, DPackets: dPackets})
	if len(f.Deltas) > maxDeltas {
		f.Deltas = f.Deltas[len(f.Deltas)-maxDeltas:]
	}

	last := &f.Deltas[len(f.Deltas)-1]
	tOld := now.Add(-defaultDeltaWindow)
	if len(f.Deltas) >= 2 {
		tOld = f.Deltas[len(f.Deltas)-2].UpdatedAt
	}

	dt := now.Sub(tOld)
	if dt >= idleThreshold || dt <= 0 {
		last.BPS, last.PPS = 0, 0
		return
	}
	seconds := uint64(dt.Seconds())
	if seconds == 0 {
		seconds = 1
	}
	if last.DOctets > 0 {
		last.BPS = last.DOctets / seconds
	}
	if last.DPackets > 0 {
		last.PPS = last.DPackets / seconds
	}
}
