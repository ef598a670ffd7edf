package mep

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Decode interprets raw as one inner-protocol message. It never fails: short
// buffers return whatever header fields fit and unknown type codes return
// the header plus an opaque payload.
func Decode(raw []byte, receivedAt time.Time) Message {
	msg := Message{ReceivedAt: receivedAt}
	h, complete := decodeHeader(raw)
	msg.Header = h
	if !complete {
		msg.Truncated = true
		if len(raw) >= 4 && Kind(h.TypeCode).Known() {
			msg.Kind = Kind(h.TypeCode)
		}
		return msg
	}

	schema, ok := schemas[Kind(h.TypeCode)]
	if !ok {
		msg.Kind = KindUnknown
		msg.Payload = append([]byte(nil), raw[HeaderLen:]...)
		return msg
	}
	msg.Kind = schema.Kind
	if len(raw) < schema.Len {
		msg.Truncated = true
		return msg
	}

	fields := make(map[string]Value, len(schema.Fields))
	msg.Invalid = decodeFields(raw, 0, schema.Fields, fields, msg.Invalid)

	var groups []map[string]Value
	if g := schema.Group; g != nil {
		n := int(fields[g.Count].Uint)
		if n > g.Max {
			msg.Invalid = append(msg.Invalid, g.Count)
			n = g.Max
		}
		groups = make([]map[string]Value, 0, n)
		for i := 0; i < n; i++ {
			entry := make(map[string]Value, len(g.Fields))
			msg.Invalid = decodeFields(raw, g.Offset+i*g.Size, g.Fields, entry, msg.Invalid)
			groups = append(groups, entry)
		}
	}

	msg.Body = buildBody(schema.Kind, Values{Fields: fields, Groups: groups})
	return msg
}

func decodeHeader(raw []byte) (Header, bool) {
	var h Header
	if len(raw) >= 2 {
		h.Length = binary.LittleEndian.Uint16(raw[0:2])
	}
	if len(raw) >= 4 {
		h.TypeCode = binary.LittleEndian.Uint16(raw[2:4])
	}
	if len(raw) >= 8 {
		h.Sequence = binary.LittleEndian.Uint32(raw[4:8])
	}
	if len(raw) >= HeaderLen {
		h.SendTime = binary.LittleEndian.Uint64(raw[8:16])
		return h, true
	}
	return h, false
}

func decodeFields(raw []byte, base int, specs []Field, out map[string]Value, invalid []string) []string {
	for _, f := range specs {
		start := base + f.Offset
		b := raw[start : start+f.Width]
		v, ok := decodeValue(f, b)
		out[f.Name] = v
		if !ok {
			invalid = append(invalid, f.Name)
		}
	}
	return invalid
}

func decodeValue(f Field, b []byte) (Value, bool) {
	switch f.Rule {
	case RuleUint:
		return Value{Uint: readUint(b)}, true
	case RuleEnum:
		v := uint64(b[0])
		return Value{Uint: v}, f.Valid == nil || f.Valid(v)
	case RuleInt:
		return Value{Int: int64(binary.LittleEndian.Uint64(b))}, true
	case RulePrice:
		p := Price(binary.LittleEndian.Uint64(b))
		return Value{Int: int64(p)}, p.Valid()
	case RuleText:
		s, ok := readText(b)
		return Value{Text: s}, ok
	default:
		return Value{}, false
	}
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

// readText cuts at the first NUL, trims trailing spaces and rejects anything
// outside printable ASCII. A rejected field decodes to "".
func readText(b []byte) (string, bool) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	b = bytes.TrimRight(b, " ")
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
