package mep

type fieldSet map[string]Value

func (f fieldSet) u64(name string) uint64 { return f[name].Uint }
func (f fieldSet) i64(name string) int64 { return f[name].Int }
func (f fieldSet) price(name string) Price { return Price(f[name].Int) }
func (f fieldSet) text(name string) string { return f[name].Text }
func (f fieldSet) flag(name string) bool { return f[name].Uint != 0 }
func (f fieldSet) u32(name string) uint32 { return uint32(f[name].Uint) }
func (f fieldSet) u16(name string) uint16 { return uint16(f[name].Uint) }
func (f fieldSet) status(name string) OrdStatus { return OrdStatus(f[name].Uint) }

func uv(v uint64) Value { return Value{Uint: v} }
func iv(v int64) Value { return Value{Int: v} }
func pv(p Price) Value { return Value{Int: int64(p)} }
func tv(s string) Value { return Value{Text: s} }

func bv(b bool) Value {
	if b {
		return Value{Uint: 1}
	}
	return Value{}
}

func only(fields map[string]Value) Values {
	return Values{Fields: fields}
}

func buildBody(k Kind, v Values) Body {
	f := fieldSet(v.Fields)
	switch k {
	case KindLogin:
		return Login{
			SessionID:   f.u32(FieldSessionID),
			HeartbeatMS: f.u32(FieldHeartbeatMS),
			AppName:     f.text(FieldAppName),
			AppVersion:  f.text(FieldAppVersion),
		}
	case KindLoginResponse:
		return LoginResponse{
			SessionID:    f.u32(FieldSessionID),
			Status:       SessionStatus(f.u64(FieldStatus)),
			Reason:       f.u16(FieldReason),
			HeartbeatMS:  f.u32(FieldHeartbeatMS),
			LastSequence: f.u32(FieldLastSequence),
		}
	case KindLogout:
		return Logout{Reason: f.u16(FieldReason)}
	case KindLogoutResponse:
		return LogoutResponse{Status: SessionStatus(f.u64(FieldStatus)), Reason: f.u16(FieldReason)}
	case KindHeartbeat:
		return Heartbeat{}
	case KindConnectionClose:
		return ConnectionClose{Reason: f.u16(FieldReason), Text: f.text(FieldText)}
	case KindReject:
		return Reject{RefSequence: f.u32(FieldRefSequence), Reason: uint8(f.u64(FieldReason))}
	case KindOrderAdd:
		return OrderAdd{
			STPID:        uint8(f.u64(FieldSTPID)),
			InstrumentID: f.u32(FieldInstrumentID),
			OrderType:    OrderType(f.u64(FieldOrderType)),
			TimeInForce:  TimeInForce(f.u64(FieldTimeInForce)),
			Side:         Side(f.u64(FieldSide)),
			Price:        f.price(FieldPrice),
			TriggerPrice: f.price(FieldTriggerPrice),
			Quantity:     f.i64(FieldQuantity),
			DisplayQty:   f.i64(FieldDisplayQty),
			Capacity:     Capacity(f.u64(FieldCapacity)),
			Account:      f.text(FieldAccount),
			ClientToken:  f.text(FieldClientToken),
			ExpireDate:   f.u32(FieldExpireDate),
			Trader:       f.text(FieldTrader),
			FreeText:     f.text(FieldFreeText),
		}
	case KindOrderAddResponse:
		return OrderAddResponse{
			OrderID:       f.u64(FieldOrderID),
			PublicOrderID: f.u64(FieldPublicOrderID),
			DisplayQty:    f.i64(FieldDisplayQty),
			FilledQty:     f.i64(FieldFilledQty),
			Status:        f.status(FieldStatus),
			Reason:        f.u16(FieldReason),
			ExecReason:    ExecReason(f.u64(FieldExecReason)),
		}
	case KindOrderModify:
		return OrderModify{
			OrderID:      f.u64(FieldOrderID),
			Price:        f.price(FieldPrice),
			TriggerPrice: f.price(FieldTriggerPrice),
			Quantity:     f.i64(FieldQuantity),
			DisplayQty:   f.i64(FieldDisplayQty),
			ClientToken:  f.text(FieldClientToken),
			InstrumentID: f.u32(FieldInstrumentID),
		}
	case KindOrderModifyResponse:
		return OrderModifyResponse{
			OrderID:          f.u64(FieldOrderID),
			FilledQty:        f.i64(FieldFilledQty),
			Status:           f.status(FieldStatus),
			PriorityRetained: f.flag(FieldPriorityRetained),
			Reason:           f.u16(FieldReason),
		}
	case KindOrderCancel:
		return OrderCancel{
			OrderID:      f.u64(FieldOrderID),
			InstrumentID: f.u32(FieldInstrumentID),
			Side:         Side(f.u64(FieldSide)),
		}
	case KindOrderCancelResponse:
		return OrderCancelResponse{
			OrderID:    f.u64(FieldOrderID),
			Status:     f.status(FieldStatus),
			Reason:     f.u16(FieldReason),
			ExecReason: ExecReason(f.u64(FieldExecReason)),
		}
	case KindTrade:
		return Trade{
			OrderID:   f.u64(FieldOrderID),
			TradeID:   f.u32(FieldTradeID),
			Price:     f.price(FieldPrice),
			Quantity:  f.i64(FieldQuantity),
			LeavesQty: f.i64(FieldLeavesQty),
		}
	case KindOrderMassCancel:
		return OrderMassCancel{
			InstrumentID: f.u32(FieldInstrumentID),
			Side:         Side(f.u64(FieldSide)),
			Scope:        MassCancelScope(f.u64(FieldScope)),
		}
	case KindOrderMassCancelResponse:
		return OrderMassCancelResponse{
			InstrumentID:   f.u32(FieldInstrumentID),
			Status:         SessionStatus(f.u64(FieldStatus)),
			Reason:         f.u16(FieldReason),
			CancelledCount: f.u32(FieldCancelledCount),
		}
	case KindMassQuote:
		mq := MassQuote{
			QuoteSetID:   f.u32(FieldQuoteSetID),
			InstrumentID: f.u32(FieldInstrumentID),
			Quotes:       make([]Quote, 0, len(v.Groups)),
		}
		for _, g := range v.Groups {
			q := fieldSet(g)
			mq.Quotes = append(mq.Quotes, Quote{
				BidPrice: q.price(FieldBidPrice),
				BidQty:   q.i64(FieldBidQty),
				AskPrice: q.price(FieldAskPrice),
				AskQty:   q.i64(FieldAskQty),
			})
		}
		return mq
	case KindMassQuoteResponse:
		mr := MassQuoteResponse{
			QuoteSetID: f.u32(FieldQuoteSetID),
			Status:     SessionStatus(f.u64(FieldStatus)),
			Reason:     f.u16(FieldReason),
			Acks:       make([]QuoteAck, 0, len(v.Groups)),
		}
		for _, g := range v.Groups {
			a := fieldSet(g)
			mr.Acks = append(mr.Acks, QuoteAck{
				BidOrderID: a.u64(FieldBidOrderID),
				AskOrderID: a.u64(FieldAskOrderID),
				BidStatus:  a.status(FieldBidStatus),
				AskStatus:  a.status(FieldAskStatus),
			})
		}
		return mr
	case KindTradeCaptureReportSingle:
		return TradeCaptureReportSingle{
			TradeReportID: f.text(FieldTradeReportID),
			InstrumentID:  f.u32(FieldInstrumentID),
			Side:          Side(f.u64(FieldSide)),
			Price:         f.price(FieldPrice),
			Quantity:      f.i64(FieldQuantity),
			TradeDate:     f.u32(FieldTradeDate),
			TransactTime:  f.u64(FieldTransactTime),
			Account:       f.text(FieldAccount),
			Counterparty:  f.text(FieldCounterparty),
			ClientToken:   f.text(FieldClientToken),
			Status:        f.status(FieldStatus),
		}
	case KindTradeCaptureReportDual:
		return TradeCaptureReportDual{
			TradeReportID:   f.text(FieldTradeReportID),
			InstrumentID:    f.u32(FieldInstrumentID),
			Price:           f.price(FieldPrice),
			Quantity:        f.i64(FieldQuantity),
			TradeDate:       f.u32(FieldTradeDate),
			TransactTime:    f.u64(FieldTransactTime),
			BuyAccount:      f.text(FieldBuyAccount),
			BuyClientToken:  f.text(FieldBuyClientToken),
			SellAccount:     f.text(FieldSellAccount),
			SellClientToken: f.text(FieldSellClientToken),
			Status:          f.status(FieldStatus),
		}
	}
	return nil
}

type Login struct {
	SessionID   uint32
	HeartbeatMS uint32
	AppName     string
	AppVersion  string
}

func (Login) Kind() Kind { return KindLogin }

func (b Login) values() Values {
	return only(map[string]Value{
		FieldSessionID:   uv(uint64(b.SessionID)),
		FieldHeartbeatMS: uv(uint64(b.HeartbeatMS)),
		FieldAppName:     tv(b.AppName),
		FieldAppVersion:  tv(b.AppVersion),
	})
}

type LoginResponse struct {
	SessionID    uint32
	Status       SessionStatus
	Reason       uint16
	HeartbeatMS  uint32
	LastSequence uint32
}

func (LoginResponse) Kind() Kind { return KindLoginResponse }

func (b LoginResponse) values() Values {
	return only(map[string]Value{
		FieldSessionID:    uv(uint64(b.SessionID)),
		FieldStatus:       uv(uint64(b.Status)),
		FieldReason:       uv(uint64(b.Reason)),
		FieldHeartbeatMS:  uv(uint64(b.HeartbeatMS)),
		FieldLastSequence: uv(uint64(b.LastSequence)),
	})
}

type Logout struct {
	Reason uint16
}

func (Logout) Kind() Kind { return KindLogout }

func (b Logout) values() Values {
	return only(map[string]Value{FieldReason: uv(uint64(b.Reason))})
}

type LogoutResponse struct {
	Status SessionStatus
	Reason uint16
}

func (LogoutResponse) Kind() Kind { return KindLogoutResponse }

func (b LogoutResponse) values() Values {
	return only(map[string]Value{
		FieldStatus: uv(uint64(b.Status)),
		FieldReason: uv(uint64(b.Reason)),
	})
}

type Heartbeat struct{}

func (Heartbeat) Kind() Kind { return KindHeartbeat }
func (Heartbeat) values() Values { return Values{} }

type ConnectionClose struct {
	Reason uint16
	Text   string
}

func (ConnectionClose) Kind() Kind { return KindConnectionClose }

func (b ConnectionClose) values() Values {
	return only(map[string]Value{
		FieldReason: uv(uint64(b.Reason)),
		FieldText:   tv(b.Text),
	})
}

// Reject refuses the inbound message with sequence RefSequence.
type Reject struct {
	RefSequence uint32
	Reason      uint8
}

func (Reject) Kind() Kind { return KindReject }

func (b Reject) values() Values {
	return only(map[string]Value{
		FieldRefSequence: uv(uint64(b.RefSequence)),
		FieldReason:      uv(uint64(b.Reason)),
	})
}

// OrderAdd is a new-order request. It carries the client token but no
// server order id.
type OrderAdd struct {
	STPID        uint8
	InstrumentID uint32
	OrderType    OrderType
	TimeInForce  TimeInForce
	Side         Side
	Price        Price
	TriggerPrice Price
	Quantity     int64
	DisplayQty   int64
	Capacity     Capacity
	Account      string
	ClientToken  string
	ExpireDate   uint32
	Trader       string
	FreeText     string
}

func (OrderAdd) Kind() Kind { return KindOrderAdd }

func (b OrderAdd) values() Values {
	return only(map[string]Value{
		FieldSTPID:        uv(uint64(b.STPID)),
		FieldInstrumentID: uv(uint64(b.InstrumentID)),
		FieldOrderType:    uv(uint64(b.OrderType)),
		FieldTimeInForce:  uv(uint64(b.TimeInForce)),
		FieldSide:         uv(uint64(b.Side)),
		FieldPrice:        pv(b.Price),
		FieldTriggerPrice: pv(b.TriggerPrice),
		FieldQuantity:     iv(b.Quantity),
		FieldDisplayQty:   iv(b.DisplayQty),
		FieldCapacity:     uv(uint64(b.Capacity)),
		FieldAccount:      tv(b.Account),
		FieldClientToken:  tv(b.ClientToken),
		FieldExpireDate:   uv(uint64(b.ExpireDate)),
		FieldTrader:       tv(b.Trader),
		FieldFreeText:     tv(b.FreeText),
	})
}

// OrderAddResponse acknowledges an add and assigns the server order id. It
// does not echo the client token.
type OrderAddResponse struct {
	OrderID       uint64
	PublicOrderID uint64
	DisplayQty    int64
	FilledQty     int64
	Status        OrdStatus
	Reason        uint16
	ExecReason    ExecReason
}

func (OrderAddResponse) Kind() Kind { return KindOrderAddResponse }

func (b OrderAddResponse) values() Values {
	return only(map[string]Value{
		FieldOrderID:       uv(b.OrderID),
		FieldPublicOrderID: uv(b.PublicOrderID),
		FieldDisplayQty:    iv(b.DisplayQty),
		FieldFilledQty:     iv(b.FilledQty),
		FieldStatus:        uv(uint64(b.Status)),
		FieldReason:        uv(uint64(b.Reason)),
		FieldExecReason:    uv(uint64(b.ExecReason)),
	})
}

type OrderModify struct {
	OrderID      uint64
	Price        Price
	TriggerPrice Price
	Quantity     int64
	DisplayQty   int64
	ClientToken  string
	InstrumentID uint32
}

func (OrderModify) Kind() Kind { return KindOrderModify }

func (b OrderModify) values() Values {
	return only(map[string]Value{
		FieldOrderID:      uv(b.OrderID),
		FieldPrice:        pv(b.Price),
		FieldTriggerPrice: pv(b.TriggerPrice),
		FieldQuantity:     iv(b.Quantity),
		FieldDisplayQty:   iv(b.DisplayQty),
		FieldClientToken:  tv(b.ClientToken),
		FieldInstrumentID: uv(uint64(b.InstrumentID)),
	})
}

type OrderModifyResponse struct {
	OrderID          uint64
	FilledQty        int64
	Status           OrdStatus
	PriorityRetained bool
	Reason           uint16
}

func (OrderModifyResponse) Kind() Kind { return KindOrderModifyResponse }

func (b OrderModifyResponse) values() Values {
	return only(map[string]Value{
		FieldOrderID:          uv(b.OrderID),
		FieldFilledQty:        iv(b.FilledQty),
		FieldStatus:           uv(uint64(b.Status)),
		FieldPriorityRetained: bv(b.PriorityRetained),
		FieldReason:           uv(uint64(b.Reason)),
	})
}

type OrderCancel struct {
	OrderID      uint64
	InstrumentID uint32
	Side         Side
}

func (OrderCancel) Kind() Kind { return KindOrderCancel }

func (b OrderCancel) values() Values {
	return only(map[string]Value{
		FieldOrderID:      uv(b.OrderID),
		FieldInstrumentID: uv(uint64(b.InstrumentID)),
		FieldSide:         uv(uint64(b.Side)),
	})
}

type OrderCancelResponse struct {
	OrderID    uint64
	Status     OrdStatus
	Reason     uint16
	ExecReason ExecReason
}

func (OrderCancelResponse) Kind() Kind { return KindOrderCancelResponse }

func (b OrderCancelResponse) values() Values {
	return only(map[string]Value{
		FieldOrderID:    uv(b.OrderID),
		FieldStatus:     uv(uint64(b.Status)),
		FieldReason:     uv(uint64(b.Reason)),
		FieldExecReason: uv(uint64(b.ExecReason)),
	})
}

type Trade struct {
	OrderID   uint64
	TradeID   uint32
	Price     Price
	Quantity  int64
	LeavesQty int64
}

func (Trade) Kind() Kind { return KindTrade }

func (b Trade) values() Values {
	return only(map[string]Value{
		FieldOrderID:   uv(b.OrderID),
		FieldTradeID:   uv(uint64(b.TradeID)),
		FieldPrice:     pv(b.Price),
		FieldQuantity:  iv(b.Quantity),
		FieldLeavesQty: iv(b.LeavesQty),
	})
}

type OrderMassCancel struct {
	InstrumentID uint32
	Side         Side
	Scope        MassCancelScope
}

func (OrderMassCancel) Kind() Kind { return KindOrderMassCancel }

func (b OrderMassCancel) values() Values {
	return only(map[string]Value{
		FieldInstrumentID: uv(uint64(b.InstrumentID)),
		FieldSide:         uv(uint64(b.Side)),
		FieldScope:        uv(uint64(b.Scope)),
	})
}

type OrderMassCancelResponse struct {
	InstrumentID   uint32
	Status         SessionStatus
	Reason         uint16
	CancelledCount uint32
}

func (OrderMassCancelResponse) Kind() Kind { return KindOrderMassCancelResponse }

func (b OrderMassCancelResponse) values() Values {
	return only(map[string]Value{
		FieldInstrumentID:   uv(uint64(b.InstrumentID)),
		FieldStatus:         uv(uint64(b.Status)),
		FieldReason:         uv(uint64(b.Reason)),
		FieldCancelledCount: uv(uint64(b.CancelledCount)),
	})
}

type Quote struct {
	BidPrice Price
	BidQty   int64
	AskPrice Price
	AskQty   int64
}

type MassQuote struct {
	QuoteSetID   uint32
	InstrumentID uint32
	Quotes       []Quote
}

func (MassQuote) Kind() Kind { return KindMassQuote }

func (b MassQuote) values() Values {
	v := only(map[string]Value{
		FieldQuoteSetID:   uv(uint64(b.QuoteSetID)),
		FieldInstrumentID: uv(uint64(b.InstrumentID)),
		FieldQuoteCount:   uv(uint64(len(b.Quotes))),
	})
	for _, q := range b.Quotes {
		v.Groups = append(v.Groups, map[string]Value{
			FieldBidPrice: pv(q.BidPrice),
			FieldBidQty:   iv(q.BidQty),
			FieldAskPrice: pv(q.AskPrice),
			FieldAskQty:   iv(q.AskQty),
		})
	}
	return v
}

type QuoteAck struct {
	BidOrderID uint64
	AskOrderID uint64
	BidStatus  OrdStatus
	AskStatus  OrdStatus
}

type MassQuoteResponse struct {
	QuoteSetID uint32
	Status     SessionStatus
	Reason     uint16
	Acks       []QuoteAck
}

func (MassQuoteResponse) Kind() Kind { return KindMassQuoteResponse }

func (b MassQuoteResponse) values() Values {
	v := only(map[string]Value{
		FieldQuoteSetID: uv(uint64(b.QuoteSetID)),
		FieldStatus:     uv(uint64(b.Status)),
		FieldReason:     uv(uint64(b.Reason)),
		FieldQuoteCount: uv(uint64(len(b.Acks))),
	})
	for _, a := range b.Acks {
		v.Groups = append(v.Groups, map[string]Value{
			FieldBidOrderID: uv(a.BidOrderID),
			FieldAskOrderID: uv(a.AskOrderID),
			FieldBidStatus:  uv(uint64(a.BidStatus)),
			FieldAskStatus:  uv(uint64(a.AskStatus)),
		})
	}
	return v
}

type TradeCaptureReportSingle struct {
	TradeReportID string
	InstrumentID  uint32
	Side          Side
	Price         Price
	Quantity      int64
	TradeDate     uint32
	TransactTime  uint64
	Account       string
	Counterparty  string
	ClientToken   string
	Status        OrdStatus
}

func (TradeCaptureReportSingle) Kind() Kind { return KindTradeCaptureReportSingle }

func (b TradeCaptureReportSingle) values() Values {
	return only(map[string]Value{
		FieldTradeReportID: tv(b.TradeReportID),
		FieldInstrumentID:  uv(uint64(b.InstrumentID)),
		FieldSide:          uv(uint64(b.Side)),
		FieldPrice:         pv(b.Price),
		FieldQuantity:      iv(b.Quantity),
		FieldTradeDate:     uv(uint64(b.TradeDate)),
		FieldTransactTime:  uv(b.TransactTime),
		FieldAccount:       tv(b.Account),
		FieldCounterparty:  tv(b.Counterparty),
		FieldClientToken:   tv(b.ClientToken),
		FieldStatus:        uv(uint64(b.Status)),
	})
}

type TradeCaptureReportDual struct {
	TradeReportID   string
	InstrumentID    uint32
	Price           Price
	Quantity        int64
	TradeDate       uint32
	TransactTime    uint64
	BuyAccount      string
	BuyClientToken  string
	SellAccount     string
	SellClientToken string
	Status          OrdStatus
}

func (TradeCaptureReportDual) Kind() Kind { return KindTradeCaptureReportDual }

func (b TradeCaptureReportDual) values() Values {
	return only(map[string]Value{
		FieldTradeReportID:   tv(b.TradeReportID),
		FieldInstrumentID:    uv(uint64(b.InstrumentID)),
		FieldPrice:           pv(b.Price),
		FieldQuantity:        iv(b.Quantity),
		FieldTradeDate:       uv(uint64(b.TradeDate)),
		FieldTransactTime:    uv(b.TransactTime),
		FieldBuyAccount:      tv(b.BuyAccount),
		FieldBuyClientToken:  tv(b.BuyClientToken),
		FieldSellAccount:     tv(b.SellAccount),
		FieldSellClientToken: tv(b.SellClientToken),
		FieldStatus:          uv(uint64(b.Status)),
	})
}
