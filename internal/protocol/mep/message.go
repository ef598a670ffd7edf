package mep

import "time"

const HeaderLen = 16

// Header is the common 16-byte prefix of every inner-protocol message.
type Header struct {
	Length   uint16
	TypeCode uint16
	Sequence uint32
	SendTime uint64
}

// Time converts the nanosecond send time to local wall-clock time.
func (h Header) Time() time.Time {
	return time.Unix(0, int64(h.SendTime)).Local()
}

// Body is the typed, kind-specific part of a decoded message.
type Body interface {
	Kind() Kind
	values() Values
}

// Message is the result of Decode. Body is nil when the buffer was shorter
// than the kind's layout or the kind is not modeled.
type Message struct {
	Header     Header
	Kind       Kind
	ReceivedAt time.Time
	Body       Body

	// Truncated reports that the buffer ended before the kind's layout did.
	Truncated bool
	// Invalid names fields that decoded to a sentinel value.
	Invalid []string
	// Payload holds the bytes after the header for unknown kinds.
	Payload []byte
}

// Value is one decoded field. Only the member matching the field's rule is
// populated; prices use Int.
type Value struct {
	Uint uint64
	Int  int64
	Text string
}

// Values is the table form of a body.
type Values struct {
	Fields map[string]Value
	Groups []map[string]Value
}
