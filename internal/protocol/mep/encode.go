package mep

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes body with the layout of its kind. Length and TypeCode in
// h are overwritten from the schema.
func Encode(h Header, body Body) ([]byte, error) {
	schema, ok := schemas[body.Kind()]
	if !ok {
		return nil, fmt.Errorf("mep: no layout for %s", body.Kind())
	}
	buf := make([]byte, schema.Len)
	h.Length = uint16(schema.Len)
	h.TypeCode = uint16(schema.Kind)
	binary.LittleEndian.PutUint16(buf[0:2], h.Length)
	binary.LittleEndian.PutUint16(buf[2:4], h.TypeCode)
	binary.LittleEndian.PutUint32(buf[4:8], h.Sequence)
	binary.LittleEndian.PutUint64(buf[8:16], h.SendTime)

	v := body.values()
	encodeFields(buf, 0, schema.Fields, v.Fields)
	if g := schema.Group; g != nil {
		if len(v.Groups) > g.Max {
			return nil, fmt.Errorf("mep: %s carries %d entries, max %d", schema.Kind, len(v.Groups), g.Max)
		}
		for i, entry := range v.Groups {
			encodeFields(buf, g.Offset+i*g.Size, g.Fields, entry)
		}
	}
	return buf, nil
}

func encodeFields(buf []byte, base int, specs []Field, values map[string]Value) {
	for _, f := range specs {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		b := buf[base+f.Offset : base+f.End()]
		switch f.Rule {
		case RuleUint, RuleEnum:
			writeUint(b, v.Uint)
		case RuleInt, RulePrice:
			binary.LittleEndian.PutUint64(b, uint64(v.Int))
		case RuleText:
			copy(b, v.Text)
		}
	}
}

func writeUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}
