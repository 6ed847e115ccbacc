package wire

import (
	"encoding/binary"
	"net"

	"netflow9-collector/internal/catalog"
)

// Value is a typed field value decoded from a data record, per the width
// table in spec.md §4.4. Exactly one of the accessors below is meaningful,
// depending on Width.
type Value struct {
	Width uint16
	raw   uint64
	ip    net.IP
}

// Uint64 returns the value as an unsigned integer (widths 1, 2, 4, 8).
func (v Value) Uint64() uint64 { return v.raw }

// IP returns the value as an IPv4 address (width 4, address-kind fields
// only — see decodeField).
func (v Value) IP() net.IP { return v.ip }

// Record is a sparse mapping from field kind to decoded value, produced by
// the data decoder and consumed (then discarded) by the flow aggregator.
type Record map[catalog.FieldKind]Value

// addressKinds are the field kinds whose 4-octet width is reinterpreted as
// an IPv4 address rather than a plain integer, per spec.md §4.4.
var addressKinds = map[catalog.FieldKind]bool{
	catalog.SrcAddr:    true,
	catalog.DstAddr:    true,
	catalog.NextHop:    true,
	catalog.BGPNextHop: true,
}

// DecodeDataSet walks body in tmpl-sized slices and decodes each into a
// Record, per spec.md §4.4. Padding after the last whole record (added to
// round the set up to a 4-octet boundary) is ignored; if the template's
// total width does not evenly divide the body length, as many whole
// records as fit are decoded and the remainder is silently dropped.
func DecodeDataSet(body []byte, tmpl *Template) []Record {
	if tmpl == nil || tmpl.Length == 0 {
		return nil
	}

	var records []Record
	for offset := 0; offset+tmpl.Length <= len(body); offset += tmpl.Length {
		records = append(records, decodeRecord(body[offset:offset+tmpl.Length], tmpl))
	}
	return records
}

// decodeRecord decodes a single tmpl.Length-byte slice against tmpl's field
// list, in order. A field whose declared length would run past the end of
// the slice can't happen here (the caller already sliced exactly
// tmpl.Length bytes) but is guarded defensively; fields of unrecognised
// width are skipped without producing a value, per spec.md §4.4's
// "other widths" rule.
func decodeRecord(rec []byte, tmpl *Template) Record {
	out := make(Record, len(tmpl.Fields))
	offset := 0
	for _, field := range tmpl.Fields {
		length := int(field.Length)
		if offset+length > len(rec) {
			break
		}
		data := rec[offset : offset+length]
		offset += length

		if v, ok := decodeField(field.Kind, data); ok {
			out[field.Kind] = v
		}
	}
	return out
}

// decodeField parses one field's raw octets per the width table in
// spec.md §4.4. Widths other than 1, 2, 4, 6, 8 are opaque: the caller has
// already advanced past them, but no typed value is produced.
func decodeField(kind catalog.FieldKind, data []byte) (Value, bool) {
	switch len(data) {
	case 1:
		return Value{Width: 1, raw: uint64(data[0])}, true
	case 2:
		return Value{Width: 2, raw: uint64(binary.BigEndian.Uint16(data))}, true
	case 4:
		if addressKinds[kind] {
			ip := make(net.IP, 4)
			copy(ip, data)
			return Value{Width: 4, ip: ip}, true
		}
		return Value{Width: 4, raw: uint64(binary.BigEndian.Uint32(data))}, true
	case 6:
		// Big-endian MAC, zero-extended into a u64.
		var mac [8]byte
		copy(mac[2:], data)
		return Value{Width: 6, raw: binary.BigEndian.Uint64(mac[:])}, true
	case 8:
		return Value{Width: 8, raw: binary.BigEndian.Uint64(data)}, true
	default:
		return Value{}, false
	}
}
