package wire

import (
	"encoding/binary"

	"netflow9-collector/internal/catalog"
)

// FieldDef is one slot in a template's field list: the semantic kind the
// field catalogue assigned to its wire ID, and the width the exporter
// declared for it (which may narrow or widen the catalogue's canonical
// width — the declared width always wins during decoding).
type FieldDef struct {
	Kind   catalog.FieldKind
	Length uint16
}

// Template is a learned v9 template: its ID and its ordered field list.
// Identity is (sender_ip, template_id), tracked by the caller (flowtable
// registry); Template itself is immutable once built.
type Template struct {
	ID     uint16
	Fields []FieldDef
	// Length is the sum of all field widths — the fixed size of one data
	// record under this template.
	Length int
}

// DecodeTemplateSet parses a template-set body (spec.md §4.3). A single
// set may pack many templates back-to-back; DecodeTemplateSet returns all
// of them in wire order. A truncated trailing template (not enough bytes
// left for its declared field_count) stops the walk without erroring —
// everything fully parsed up to that point is returned.
func DecodeTemplateSet(body []byte) []Template {
	var templates []Template
	offset := 0

	for offset+4 <= len(body) {
		templateID := binary.BigEndian.Uint16(body[offset:])
		fieldCount := binary.BigEndian.Uint16(body[offset+2:])
		offset += 4

		if offset+int(fieldCount)*4 > len(body) {
			break
		}

		tmpl := Template{ID: templateID, Fields: make([]FieldDef, fieldCount)}
		for i := 0; i < int(fieldCount); i++ {
			fieldType := binary.BigEndian.Uint16(body[offset:])
			fieldLen := binary.BigEndian.Uint16(body[offset+2:])
			tmpl.Fields[i] = FieldDef{Kind: catalog.KindOf(fieldType), Length: fieldLen}
			tmpl.Length += int(fieldLen)
			offset += 4
		}

		templates = append(templates, tmpl)
	}

	return templates
}
