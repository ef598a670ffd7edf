package mep

// Rule selects how a field's bytes are interpreted.
type Rule uint8

const (
	RuleUint  Rule = iota + 1 // little-endian unsigned, width 1/2/4/8
	RuleInt                   // little-endian signed, width 8
	RulePrice                 // signed fixed-point, width 8, scale 10^8
	RuleText                  // ascii, right-padded with NUL or space
	RuleEnum                  // single byte checked by Field.Valid
)

// Field is one entry of a fixed layout. Offsets are absolute, counted from
// the first byte of the common header.
type Field struct {
	Name   string
	Offset int
	Width  int
	Rule   Rule
	Valid  func(uint64) bool
}

func (f Field) End() int { return f.Offset + f.Width }

// Group is a repeated block of fields. The number of populated entries is
// read from the Count field and capped at Max.
type Group struct {
	Count  string
	Offset int
	Size   int
	Max    int
	Fields []Field
}

// Schema is the fixed layout of one message kind.
type Schema struct {
	Kind   Kind
	Len    int
	Fields []Field
	Group  *Group
}

// Field names shared across layouts.
const (
	FieldSessionID        = "session_id"
	FieldHeartbeatMS      = "heartbeat_ms"
	FieldAppName          = "app_name"
	FieldAppVersion       = "app_version"
	FieldStatus           = "status"
	FieldReason           = "reason"
	FieldLastSequence     = "last_sequence"
	FieldText             = "text"
	FieldRefSequence      = "ref_sequence"
	FieldSTPID            = "stp_id"
	FieldInstrumentID     = "instrument_id"
	FieldOrderType        = "order_type"
	FieldTimeInForce      = "time_in_force"
	FieldSide             = "side"
	FieldPrice            = "price"
	FieldTriggerPrice     = "trigger_price"
	FieldQuantity         = "quantity"
	FieldDisplayQty       = "display_qty"
	FieldCapacity         = "capacity"
	FieldAccount          = "account"
	FieldClientToken      = "client_token"
	FieldExpireDate       = "expire_date"
	FieldTrader           = "trader"
	FieldFreeText         = "free_text"
	FieldOrderID          = "order_id"
	FieldPublicOrderID    = "public_order_id"
	FieldFilledQty        = "filled_qty"
	FieldExecReason       = "exec_reason"
	FieldPriorityRetained = "priority_retained"
	FieldTradeID          = "trade_id"
	FieldLeavesQty        = "leaves_qty"
	FieldScope            = "scope"
	FieldCancelledCount   = "cancelled_count"
	FieldQuoteSetID       = "quote_set_id"
	FieldQuoteCount       = "quote_count"
	FieldBidPrice         = "bid_price"
	FieldBidQty           = "bid_qty"
	FieldAskPrice         = "ask_price"
	FieldAskQty           = "ask_qty"
	FieldBidOrderID       = "bid_order_id"
	FieldAskOrderID       = "ask_order_id"
	FieldBidStatus        = "bid_status"
	FieldAskStatus        = "ask_status"
	FieldTradeReportID    = "trade_report_id"
	FieldTradeDate        = "trade_date"
	FieldTransactTime     = "transact_time"
	FieldCounterparty     = "counterparty"
	FieldBuyAccount       = "buy_account"
	FieldBuyClientToken   = "buy_client_token"
	FieldSellAccount      = "sell_account"
	FieldSellClientToken  = "sell_client_token"
)

const (
	TokenLen   = 20
	AccountLen = 16
	MaxQuotes  = 10
)

func u8(name string, off int) Field { return Field{Name: name, Offset: off, Width: 1, Rule: RuleUint} }
func u16(name string, off int) Field { return Field{Name: name, Offset: off, Width: 2, Rule: RuleUint} }
func u32(name string, off int) Field { return Field{Name: name, Offset: off, Width: 4, Rule: RuleUint} }
func u64(name string, off int) Field { return Field{Name: name, Offset: off, Width: 8, Rule: RuleUint} }
func i64(name string, off int) Field { return Field{Name: name, Offset: off, Width: 8, Rule: RuleInt} }
func px(name string, off int) Field { return Field{Name: name, Offset: off, Width: 8, Rule: RulePrice} }

func text(name string, off, width int) Field {
	return Field{Name: name, Offset: off, Width: width, Rule: RuleText}
}

func enum(name string, off int, valid func(uint64) bool) Field {
	return Field{Name: name, Offset: off, Width: 1, Rule: RuleEnum, Valid: valid}
}

func validSide(v uint64) bool { return Side(v).Valid() }
func validOrderType(v uint64) bool { return OrderType(v).Valid() }
func validTimeInForce(v uint64) bool { return TimeInForce(v).Valid() }
func validOrdStatus(v uint64) bool { return OrdStatus(v).Valid() }
func validExecReason(v uint64) bool { return ExecReason(v).Valid() }
func validCapacity(v uint64) bool { return Capacity(v).Valid() }
func validScope(v uint64) bool { return MassCancelScope(v).Valid() }
func validSession(v uint64) bool { return SessionStatus(v).Valid() }
func validFlag(v uint64) bool { return v <= 1 }

var schemas = map[Kind]Schema{
	KindLogin: {Kind: KindLogin, Len: 56, Fields: []Field{
		u32(FieldSessionID, 16),
		u32(FieldHeartbeatMS, 20),
		text(FieldAppName, 24, 16),
		text(FieldAppVersion, 40, 16),
	}},
	KindLoginResponse: {Kind: KindLoginResponse, Len: 32, Fields: []Field{
		u32(FieldSessionID, 16),
		enum(FieldStatus, 20, validSession),
		u16(FieldReason, 21),
		u32(FieldHeartbeatMS, 23),
		u32(FieldLastSequence, 27),
	}},
	KindLogout: {Kind: KindLogout, Len: 20, Fields: []Field{
		u16(FieldReason, 16),
	}},
	KindLogoutResponse: {Kind: KindLogoutResponse, Len: 20, Fields: []Field{
		enum(FieldStatus, 16, validSession),
		u16(FieldReason, 17),
	}},
	KindHeartbeat: {Kind: KindHeartbeat, Len: HeaderLen},
	KindConnectionClose: {Kind: KindConnectionClose, Len: 50, Fields: []Field{
		u16(FieldReason, 16),
		text(FieldText, 18, 32),
	}},
	KindReject: {Kind: KindReject, Len: 21, Fields: []Field{
		u32(FieldRefSequence, 16),
		u8(FieldReason, 20),
	}},
	KindOrderAdd: {Kind: KindOrderAdd, Len: 167, Fields: []Field{
		u8(FieldSTPID, 16),
		u32(FieldInstrumentID, 17),
		enum(FieldOrderType, 21, validOrderType),
		enum(FieldTimeInForce, 22, validTimeInForce),
		enum(FieldSide, 23, validSide),
		px(FieldPrice, 24),
		px(FieldTriggerPrice, 32),
		i64(FieldQuantity, 40),
		i64(FieldDisplayQty, 48),
		enum(FieldCapacity, 56, validCapacity),
		text(FieldAccount, 57, AccountLen),
		text(FieldClientToken, 73, TokenLen),
		u32(FieldExpireDate, 93),
		text(FieldTrader, 97, 16),
		text(FieldFreeText, 113, 32),
	}},
	KindOrderAddResponse: {Kind: KindOrderAddResponse, Len: 52, Fields: []Field{
		u64(FieldOrderID, 16),
		u64(FieldPublicOrderID, 24),
		i64(FieldDisplayQty, 32),
		i64(FieldFilledQty, 40),
		enum(FieldStatus, 48, validOrdStatus),
		u16(FieldReason, 49),
		enum(FieldExecReason, 51, validExecReason),
	}},
	KindOrderModify: {Kind: KindOrderModify, Len: 80, Fields: []Field{
		u64(FieldOrderID, 16),
		px(FieldPrice, 24),
		px(FieldTriggerPrice, 32),
		i64(FieldQuantity, 40),
		i64(FieldDisplayQty, 48),
		text(FieldClientToken, 56, TokenLen),
		u32(FieldInstrumentID, 76),
	}},
	KindOrderModifyResponse: {Kind: KindOrderModifyResponse, Len: 36, Fields: []Field{
		u64(FieldOrderID, 16),
		i64(FieldFilledQty, 24),
		enum(FieldStatus, 32, validOrdStatus),
		enum(FieldPriorityRetained, 33, validFlag),
		u16(FieldReason, 34),
	}},
	KindOrderCancel: {Kind: KindOrderCancel, Len: 40, Fields: []Field{
		u64(FieldOrderID, 16),
		u32(FieldInstrumentID, 24),
		enum(FieldSide, 28, validSide),
	}},
	KindOrderCancelResponse: {Kind: KindOrderCancelResponse, Len: 28, Fields: []Field{
		u64(FieldOrderID, 16),
		enum(FieldStatus, 24, validOrdStatus),
		u16(FieldReason, 25),
		enum(FieldExecReason, 27, validExecReason),
	}},
	KindTrade: {Kind: KindTrade, Len: 52, Fields: []Field{
		u64(FieldOrderID, 16),
		u32(FieldTradeID, 24),
		px(FieldPrice, 28),
		i64(FieldQuantity, 36),
		i64(FieldLeavesQty, 44),
	}},
	KindOrderMassCancel: {Kind: KindOrderMassCancel, Len: 24, Fields: []Field{
		u32(FieldInstrumentID, 16),
		enum(FieldSide, 20, func(v uint64) bool { return v == 0 || validSide(v) }),
		enum(FieldScope, 21, validScope),
	}},
	KindOrderMassCancelResponse: {Kind: KindOrderMassCancelResponse, Len: 32, Fields: []Field{
		u32(FieldInstrumentID, 16),
		enum(FieldStatus, 20, validSession),
		u16(FieldReason, 21),
		u32(FieldCancelledCount, 24),
	}},
	KindMassQuote: {Kind: KindMassQuote, Len: 28 + MaxQuotes*32, Fields: []Field{
		u32(FieldQuoteSetID, 16),
		u32(FieldInstrumentID, 20),
		u8(FieldQuoteCount, 24),
	}, Group: &Group{Count: FieldQuoteCount, Offset: 28, Size: 32, Max: MaxQuotes, Fields: []Field{
		px(FieldBidPrice, 0),
		i64(FieldBidQty, 8),
		px(FieldAskPrice, 16),
		i64(FieldAskQty, 24),
	}}},
	KindMassQuoteResponse: {Kind: KindMassQuoteResponse, Len: 24 + MaxQuotes*24, Fields: []Field{
		u32(FieldQuoteSetID, 16),
		enum(FieldStatus, 20, validSession),
		u16(FieldReason, 21),
		u8(FieldQuoteCount, 23),
	}, Group: &Group{Count: FieldQuoteCount, Offset: 24, Size: 24, Max: MaxQuotes, Fields: []Field{
		u64(FieldBidOrderID, 0),
		u64(FieldAskOrderID, 8),
		enum(FieldBidStatus, 16, validOrdStatus),
		enum(FieldAskStatus, 17, validOrdStatus),
	}}},
	KindTradeCaptureReportSingle: {Kind: KindTradeCaptureReportSingle, Len: 128, Fields: []Field{
		text(FieldTradeReportID, 16, 20),
		u32(FieldInstrumentID, 36),
		enum(FieldSide, 40, validSide),
		px(FieldPrice, 44),
		i64(FieldQuantity, 52),
		u32(FieldTradeDate, 60),
		u64(FieldTransactTime, 64),
		text(FieldAccount, 72, AccountLen),
		text(FieldCounterparty, 88, 16),
		text(FieldClientToken, 104, TokenLen),
		enum(FieldStatus, 124, validOrdStatus),
	}},
	KindTradeCaptureReportDual: {Kind: KindTradeCaptureReportDual, Len: 152, Fields: []Field{
		text(FieldTradeReportID, 16, 20),
		u32(FieldInstrumentID, 36),
		px(FieldPrice, 44),
		i64(FieldQuantity, 52),
		u32(FieldTradeDate, 60),
		u64(FieldTransactTime, 64),
		text(FieldBuyAccount, 72, AccountLen),
		text(FieldBuyClientToken, 88, TokenLen),
		text(FieldSellAccount, 108, AccountLen),
		text(FieldSellClientToken, 124, TokenLen),
		enum(FieldStatus, 144, validOrdStatus),
	}},
}

// SchemaFor returns the layout of k.
func SchemaFor(k Kind) (Schema, bool) {
	s, ok := schemas[k]
	return s, ok
}
