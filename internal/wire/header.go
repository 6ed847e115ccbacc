// Package wire implements the template-driven NetFlow v9 binary decoder:
// the datagram reader (header + set classification), the template decoder,
// and the data decoder described in spec.md §4.2-4.4.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed v9 packet header length in octets.
const HeaderSize = 20

// setHeaderSize is the length of a flowset's set_id/set_length prefix.
const setHeaderSize = 4

// SetKind classifies a flowset by its set_id, per spec.md §4.2.
type SetKind int

const (
	SetTemplate SetKind = iota
	SetOptionsTemplate
	SetData
	SetReserved
)

// ClassifySet maps a set_id to its SetKind. set_id 0 is a template set, 1 is
// an options-template (out of scope, skipped), 2-255 is reserved (skipped),
// and everything >= 256 is a data set whose template_id equals the set_id.
func ClassifySet(setID uint16) SetKind {
	switch {
	case setID == 0:
		return SetTemplate
	case setID == 1:
		return SetOptionsTemplate
	case setID >= 256:
		return SetData
	default:
		return SetReserved
	}
}

// Header is the fixed 20-octet v9 packet header.
type Header struct {
	Version   uint16
	Count     uint16
	SysUptime uint32
	UnixSecs  uint32
	Sequence  uint32
	SourceID  uint32
}

// Set is one flowset within a datagram: its set_id and the body that follows
// the 4-octet set_id/set_length prefix.
type Set struct {
	ID   uint16
	Body []byte
}

// Datagram is a fully parsed NetFlow v9 packet: its header and every flowset
// it carries, in wire order.
type Datagram struct {
	Header Header
	Sets   []Set
}

// ErrTooShort is returned when a datagram is shorter than the v9 header.
var ErrTooShort = fmt.Errorf("netflow9: datagram shorter than %d-octet header", HeaderSize)

// ErrWrongVersion is returned when the version field is not 9.
var ErrWrongVersion = fmt.Errorf("netflow9: version field is not 9")

// ParseDatagram parses the header and walks every flowset in data, per
// spec.md §4.2: a single datagram may contain multiple sets back-to-back,
// and every one of them is walked until set_length exhausts the datagram —
// parsing never stops after the first set. A malformed trailing set (too
// short, length overruns the buffer) simply ends the walk; everything parsed
// up to that point is kept, matching spec.md §7's "no single malformed
// datagram may halt the collector".
func ParseDatagram(data []byte) (Datagram, error) {
	if len(data) < HeaderSize {
		return Datagram{}, ErrTooShort
	}

	h := Header{
		Version:   binary.BigEndian.Uint16(data[0:2]),
		Count:     binary.BigEndian.Uint16(data[2:4]),
		SysUptime: binary.BigEndian.Uint32(data[4:8]),
		UnixSecs:  binary.BigEndian.Uint32(data[8:12]),
		Sequence:  binary.BigEndian.Uint32(data[12:16]),
		SourceID:  binary.BigEndian.Uint32(data[16:20]),
	}
	if h.Version != 9 {
		return Datagram{}, ErrWrongVersion
	}

	var sets []Set
	offset := HeaderSize
	for offset+setHeaderSize <= len(data) {
		setID := binary.BigEndian.Uint16(data[offset:])
		setLen := binary.BigEndian.Uint16(data[offset+2:])

		if setLen < setHeaderSize || offset+int(setLen) > len(data) {
			break
		}

		sets = append(sets, Set{ID: setID, Body: data[offset+setHeaderSize : offset+int(setLen)]})
		offset += int(setLen)
	}

	return Datagram{Header: h, Sets: sets}, nil
}
