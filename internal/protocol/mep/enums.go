package mep

import "strconv"

type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	}
	return unknownEnum(uint8(s))
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type OrderType uint8

const (
	OrderTypeLimit     OrderType = 1
	OrderTypeMarket    OrderType = 2
	OrderTypeStop      OrderType = 3
	OrderTypeStopLimit OrderType = 4
)

func (t OrderType) Valid() bool {
	return t >= OrderTypeLimit && t <= OrderTypeStopLimit
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "Limit"
	case OrderTypeMarket:
		return "Market"
	case OrderTypeStop:
		return "Stop"
	case OrderTypeStopLimit:
		return "StopLimit"
	}
	return unknownEnum(uint8(t))
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

type TimeInForce uint8

const (
	TimeInForceDay TimeInForce = 0
	TimeInForceGTC TimeInForce = 1
	TimeInForceIOC TimeInForce = 3
	TimeInForceFOK TimeInForce = 4
	TimeInForceGTD TimeInForce = 6
)

func (t TimeInForce) Valid() bool {
	switch t {
	case TimeInForceDay, TimeInForceGTC, TimeInForceIOC, TimeInForceFOK, TimeInForceGTD:
		return true
	}
	return false
}

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceDay:
		return "Day"
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	case TimeInForceGTD:
		return "GTD"
	}
	return unknownEnum(uint8(t))
}

func (t TimeInForce) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// OrdStatus is the order status reported by response messages.
type OrdStatus uint8

const (
	OrdStatusNew             OrdStatus = 0
	OrdStatusPartiallyFilled OrdStatus = 1
	OrdStatusFilled          OrdStatus = 2
	OrdStatusCancelled       OrdStatus = 4
	OrdStatusRejected        OrdStatus = 8
	OrdStatusExpired         OrdStatus = 12
)

func (s OrdStatus) Valid() bool {
	switch s {
	case OrdStatusNew, OrdStatusPartiallyFilled, OrdStatusFilled,
		OrdStatusCancelled, OrdStatusRejected, OrdStatusExpired:
		return true
	}
	return false
}

func (s OrdStatus) String() string {
	switch s {
	case OrdStatusNew:
		return "New"
	case OrdStatusPartiallyFilled:
		return "PartiallyFilled"
	case OrdStatusFilled:
		return "Filled"
	case OrdStatusCancelled:
		return "Cancelled"
	case OrdStatusRejected:
		return "Rejected"
	case OrdStatusExpired:
		return "Expired"
	}
	return unknownEnum(uint8(s))
}

func (s OrdStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ExecReason explains why the matching engine produced a response.
type ExecReason uint8

const (
	ExecReasonNone                ExecReason = 0
	ExecReasonAdd                 ExecReason = 1
	ExecReasonModify              ExecReason = 2
	ExecReasonCancel              ExecReason = 3
	ExecReasonTrade               ExecReason = 4
	ExecReasonExpire              ExecReason = 5
	ExecReasonMassCancel          ExecReason = 6
	ExecReasonSelfTradePrevention ExecReason = 7
)

func (r ExecReason) Valid() bool {
	return r <= ExecReasonSelfTradePrevention
}

func (r ExecReason) String() string {
	switch r {
	case ExecReasonNone:
		return "None"
	case ExecReasonAdd:
		return "Add"
	case ExecReasonModify:
		return "Modify"
	case ExecReasonCancel:
		return "Cancel"
	case ExecReasonTrade:
		return "Trade"
	case ExecReasonExpire:
		return "Expire"
	case ExecReasonMassCancel:
		return "MassCancel"
	case ExecReasonSelfTradePrevention:
		return "SelfTradePrevention"
	}
	return unknownEnum(uint8(r))
}

func (r ExecReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

type Capacity uint8

const (
	CapacityAgent       Capacity = 1
	CapacityPrincipal   Capacity = 2
	CapacityMarketMaker Capacity = 3
)

func (c Capacity) Valid() bool {
	return c >= CapacityAgent && c <= CapacityMarketMaker
}

func (c Capacity) String() string {
	switch c {
	case CapacityAgent:
		return "Agent"
	case CapacityPrincipal:
		return "Principal"
	case CapacityMarketMaker:
		return "MarketMaker"
	}
	return unknownEnum(uint8(c))
}

func (c Capacity) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// MassCancelScope selects which orders a mass cancel targets.
type MassCancelScope uint8

const (
	MassCancelAll        MassCancelScope = 0
	MassCancelInstrument MassCancelScope = 1
	MassCancelSide       MassCancelScope = 2
)

func (s MassCancelScope) Valid() bool {
	return s <= MassCancelSide
}

func (s MassCancelScope) String() string {
	switch s {
	case MassCancelAll:
		return "All"
	case MassCancelInstrument:
		return "Instrument"
	case MassCancelSide:
		return "Side"
	}
	return unknownEnum(uint8(s))
}

func (s MassCancelScope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SessionStatus is the outcome carried by login/logout responses.
type SessionStatus uint8

const (
	SessionAccepted SessionStatus = 0
	SessionRejected SessionStatus = 1
)

func (s SessionStatus) Valid() bool {
	return s <= SessionRejected
}

func (s SessionStatus) String() string {
	switch s {
	case SessionAccepted:
		return "Accepted"
	case SessionRejected:
		return "Rejected"
	}
	return unknownEnum(uint8(s))
}

func (s SessionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func unknownEnum(v uint8) string {
	return "Unknown(" + strconv.Itoa(int(v)) + ")"
}
