package orders

import (
	"time"

	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

// ChangeKind describes what a single applied message did to an order.
type ChangeKind uint8

const (
	ChangeNone ChangeKind = iota
	ChangeCreated
	ChangeAcknowledged
	ChangeModifyRequested
	ChangeModifyResolved
	ChangeCancelRequested
	ChangeCancelResolved
	ChangeTraded
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "None"
	case ChangeCreated:
		return "Created"
	case ChangeAcknowledged:
		return "Acknowledged"
	case ChangeModifyRequested:
		return "ModifyRequested"
	case ChangeModifyResolved:
		return "ModifyResolved"
	case ChangeCancelRequested:
		return "CancelRequested"
	case ChangeCancelResolved:
		return "CancelResolved"
	case ChangeTraded:
		return "Traded"
	}
	return "Unknown"
}

func (k ChangeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Miss explains why a message could not be fully correlated.
type Miss uint8

const (
	MissNone Miss = iota
	// MissNoPendingRequest: an add response arrived with no submission in
	// the correlation window.
	MissNoPendingRequest
	// MissUnknownOrder: the referenced order was not tracked and an entry
	// was created for it.
	MissUnknownOrder
	// MissNoPendingAttempt: a modify or cancel response had no open request
	// to resolve.
	MissNoPendingAttempt
)

func (m Miss) String() string {
	switch m {
	case MissNone:
		return ""
	case MissNoPendingRequest:
		return "no_pending_request"
	case MissUnknownOrder:
		return "unknown_order"
	case MissNoPendingAttempt:
		return "no_pending_attempt"
	}
	return "unknown"
}

func (m Miss) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Change is emitted for every message that touched an order. Order is a
// snapshot taken after the mutation.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Order    Order      `json:"order"`
	Source   mep.Kind   `json:"-"`
	Sequence uint32     `json:"sequence"`
	At       time.Time  `json:"at"`
	Miss     Miss       `json:"miss,omitempty"`
}

// Correlated reports whether the message matched existing state.
func (c Change) Correlated() bool { return c.Miss == MissNone }
