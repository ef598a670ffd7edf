package orders

import (
	"time"

	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

// Outcome is the resolution state of a modification or cancel attempt.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "Pending"
	case OutcomeAccepted:
		return "Accepted"
	case OutcomeRejected:
		return "Rejected"
	}
	return "Unknown"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// ModField names the order attribute a modification targets.
type ModField uint8

const (
	ModNone ModField = iota
	ModPrice
	ModQuantity
	ModDisplayQty
)

func (f ModField) String() string {
	switch f {
	case ModNone:
		return "None"
	case ModPrice:
		return "Price"
	case ModQuantity:
		return "Quantity"
	case ModDisplayQty:
		return "DisplayQty"
	}
	return "Unknown"
}

func (f ModField) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

type TradeRecord struct {
	TradeID   uint32    `json:"trade_id"`
	Price     mep.Price `json:"price"`
	Quantity  int64     `json:"quantity"`
	LeavesQty int64     `json:"leaves_qty"`
	At        time.Time `json:"at"`
}

// Modification records one modify request and its resolution. Old and new
// values are raw: prices in 10^-8 units, quantities in lots.
type Modification struct {
	At               time.Time `json:"at"`
	Field            ModField  `json:"field"`
	OldValue         int64     `json:"old_value"`
	NewValue         int64     `json:"new_value"`
	Outcome          Outcome   `json:"outcome"`
	Reason           uint16    `json:"reason,omitempty"`
	PriorityRetained bool      `json:"priority_retained"`
	ResolvedAt       time.Time `json:"resolved_at,omitzero"`
}

type CancelAttempt struct {
	At         time.Time `json:"at"`
	Outcome    Outcome   `json:"outcome"`
	Reason     uint16    `json:"reason,omitempty"`
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// Order is the reconstructed state of one order. OrderID is zero until the
// gateway assigns one. Request attributes stay zero when no submission was
// correlated; Correlated reports whether one was.
type Order struct {
	OrderID       uint64 `json:"order_id"`
	PublicOrderID uint64 `json:"public_order_id,omitempty"`
	ClientToken   string `json:"client_token,omitempty"`
	Correlated    bool   `json:"correlated"`

	InstrumentID uint32          `json:"instrument_id,omitempty"`
	Side         mep.Side        `json:"side"`
	OrderType    mep.OrderType   `json:"order_type"`
	TimeInForce  mep.TimeInForce `json:"time_in_force"`
	Account      string          `json:"account,omitempty"`

	OriginalQty  int64     `json:"original_qty"`
	CurrentQty   int64     `json:"current_qty"`
	FilledQty    int64     `json:"filled_qty"`
	DisplayQty   int64     `json:"display_qty"`
	Price        mep.Price `json:"price"`
	TriggerPrice mep.Price `json:"trigger_price"`

	Status     mep.OrdStatus  `json:"status"`
	ExecReason mep.ExecReason `json:"exec_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Trades        []TradeRecord   `json:"trades"`
	Modifications []Modification  `json:"modifications"`
	Cancels       []CancelAttempt `json:"cancels"`
}

// Clone returns a copy that shares no history storage with o.
func (o Order) Clone() Order {
	o.Trades = append([]TradeRecord(nil), o.Trades...)
	o.Modifications = append([]Modification(nil), o.Modifications...)
	o.Cancels = append([]CancelAttempt(nil), o.Cancels...)
	return o
}

// LastModification returns the most recent modification, if any.
func (o Order) LastModification() (Modification, bool) {
	if len(o.Modifications) == 0 {
		return Modification{}, false
	}
	return o.Modifications[len(o.Modifications)-1], true
}

func (o Order) LastCancel() (CancelAttempt, bool) {
	if len(o.Cancels) == 0 {
		return CancelAttempt{}, false
	}
	return o.Cancels[len(o.Cancels)-1], true
}

// settle restores current = original - filled, raising original when a
// response reports more filled than was ever requested.
func (o *Order) settle() {
	if o.OriginalQty < o.FilledQty {
		o.OriginalQty = o.FilledQty
	}
	o.CurrentQty = o.OriginalQty - o.FilledQty
}

func (o *Order) adopt(req PendingRequest) {
	add := req.Request
	o.ClientToken = req.ClientToken
	o.Correlated = true
	o.InstrumentID = add.InstrumentID
	o.Side = add.Side
	o.OrderType = add.OrderType
	o.TimeInForce = add.TimeInForce
	o.Account = add.Account
	o.Price = add.Price
	o.TriggerPrice = add.TriggerPrice
	o.OriginalQty = add.Quantity
	o.DisplayQty = add.DisplayQty

	// Attempts made before the submission was known saw zero values.
	for i := range o.Modifications {
		m := &o.Modifications[i]
		if m.Outcome != OutcomePending || m.OldValue != 0 {
			continue
		}
		switch m.Field {
		case ModPrice:
			m.OldValue = int64(o.Price)
		case ModQuantity:
			m.OldValue = o.OriginalQty
		case ModDisplayQty:
			m.OldValue = o.DisplayQty
		}
	}
}

// pendingModification returns the index of the most recent unresolved
// modification, or -1.
func (o *Order) pendingModification() int {
	for i := len(o.Modifications) - 1; i >= 0; i-- {
		if o.Modifications[i].Outcome == OutcomePending {
			return i
		}
	}
	return -1
}

func (o *Order) pendingCancel() int {
	for i := len(o.Cancels) - 1; i >= 0; i-- {
		if o.Cancels[i].Outcome == OutcomePending {
			return i
		}
	}
	return -1
}

// proposeModification picks the attribute a modify request changes. The
// first of price, quantity and display quantity that differs from the order
// wins; if none differs the first one the request sets is used.
func (o *Order) proposeModification(req mep.OrderModify, at time.Time) Modification {
	type candidate struct {
		field    ModField
		old, new int64
		set      bool
	}
	cands := []candidate{
		{ModPrice, int64(o.Price), int64(req.Price), req.Price.Valid() && req.Price != 0},
		{ModQuantity, o.OriginalQty, req.Quantity, req.Quantity != 0},
		{ModDisplayQty, o.DisplayQty, req.DisplayQty, req.DisplayQty != 0},
	}
	mod := Modification{At: at, Field: ModNone, Outcome: OutcomePending}
	for _, c := range cands {
		if c.set && c.old != c.new {
			mod.Field, mod.OldValue, mod.NewValue = c.field, c.old, c.new
			return mod
		}
	}
	for _, c := range cands {
		if c.set {
			mod.Field, mod.OldValue, mod.NewValue = c.field, c.old, c.new
			return mod
		}
	}
	return mod
}

func (o *Order) applyModification(m Modification) {
	switch m.Field {
	case ModPrice:
		o.Price = mep.Price(m.NewValue)
	case ModQuantity:
		o.OriginalQty = m.NewValue
	case ModDisplayQty:
		o.DisplayQty = m.NewValue
	}
}
