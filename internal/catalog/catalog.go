// Package catalog maps NetFlow v9 field-type IDs to a semantic field kind
// and its canonical wire width, per the Cisco base set (RFC 3954 Table 6,
// field IDs 1-38).
package catalog

import "fmt"

// FieldKind identifies which semantic field a template slot carries.
type FieldKind int

const (
	UnknownKind FieldKind = iota
	InOctets
	InPackets
	Flows
	Protocol
	SrcTOS
	TCPFlags
	SrcPort
	SrcAddr
	SrcMask
	InputSNMP
	DstPort
	DstAddr
	DstMask
	OutputSNMP
	NextHop
	SrcAS
	DstAS
	BGPNextHop
	MulDstPkts
	MulDstBytes
	LastSwitched
	FirstSwitched
	OutBytes
	OutPkts
	MinPktLength
	MaxPktLength
	SrcIPv6Addr
	DstIPv6Addr
	SrcIPv6Mask
	DstIPv6Mask
	IPv6FlowLabel
	ICMPType
	MulIGMPType
	SamplingInterval
	SamplingAlgorithm
	FlowActiveTimeout
	FlowInactiveTimeout
	EngineType
	InDstMac
)

// entry describes one catalogued field-type ID.
type entry struct {
	kind  FieldKind
	width uint8
	name  string
}

// catalogue covers v9 field IDs 1-38, the Cisco base set, plus 80 (IN_DST_MAC)
// which the aggregator needs for the directed-broadcast rescue in spec.md §4.6.
var catalogue = map[uint16]entry{
	1:  {InOctets, 4, "InOctets"},
	2:  {InPackets, 4, "InPackets"},
	3:  {Flows, 4, "Flows"},
	4:  {Protocol, 1, "Protocol"},
	5:  {SrcTOS, 1, "SrcTOS"},
	6:  {TCPFlags, 1, "TCPFlags"},
	7:  {SrcPort, 2, "SrcPort"},
	8:  {SrcAddr, 4, "SrcAddr"},
	9:  {SrcMask, 1, "SrcMask"},
	10: {InputSNMP, 2, "InputSNMP"},
	11: {DstPort, 2, "DstPort"},
	12: {DstAddr, 4, "DstAddr"},
	13: {DstMask, 1, "DstMask"},
	14: {OutputSNMP, 2, "OutputSNMP"},
	15: {NextHop, 4, "NextHop"},
	16: {SrcAS, 2, "SrcAS"},
	17: {DstAS, 2, "DstAS"},
	18: {BGPNextHop, 4, "BGPNextHop"},
	19: {MulDstPkts, 4, "MulDstPkts"},
	20: {MulDstBytes, 4, "MulDstBytes"},
	21: {LastSwitched, 4, "LastSwitched"},
	22: {FirstSwitched, 4, "FirstSwitched"},
	23: {OutBytes, 4, "OutBytes"},
	24: {OutPkts, 4, "OutPkts"},
	25: {MinPktLength, 2, "MinPktLength"},
	26: {MaxPktLength, 2, "MaxPktLength"},
	27: {SrcIPv6Addr, 16, "SrcIPv6Addr"},
	28: {DstIPv6Addr, 16, "DstIPv6Addr"},
	29: {SrcIPv6Mask, 1, "SrcIPv6Mask"},
	30: {DstIPv6Mask, 1, "DstIPv6Mask"},
	31: {IPv6FlowLabel, 3, "IPv6FlowLabel"},
	32: {ICMPType, 2, "ICMPType"},
	33: {MulIGMPType, 1, "MulIGMPType"},
	34: {SamplingInterval, 4, "SamplingInterval"},
	35: {SamplingAlgorithm, 1, "SamplingAlgorithm"},
	36: {FlowActiveTimeout, 2, "FlowActiveTimeout"},
	37: {FlowInactiveTimeout, 2, "FlowInactiveTimeout"},
	38: {EngineType, 1, "EngineType"},
	80: {InDstMac, 6, "InDstMac"},
}

// KindOf maps a v9 field-type ID to its semantic kind. Unknown IDs return
// UnknownKind — this is never an error, templates may enumerate vendor-private
// fields and the decoder still has to walk past them by declared width.
func KindOf(id uint16) FieldKind {
	if e, ok := catalogue[id]; ok {
		return e.kind
	}
	return UnknownKind
}

// CanonicalWidth returns the catalogue's declared width in octets for kind.
// The decoder does not consult it: template parsing always uses the
// exporter's declared width, because v9 allows narrowed/widened encodings.
func CanonicalWidth(kind FieldKind) uint8 {
	for _, e := range catalogue {
		if e.kind == kind {
			return e.width
		}
	}
	return 0
}

func (k FieldKind) String() string {
	for _, e := range catalogue {
		if e.kind == k {
			return e.name
		}
	}
	if k == UnknownKind {
		return "Unknown"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}
