package mep

import "fmt"

// Kind is the numeric type code of an inner-protocol message.
type Kind uint16

const (
	KindUnknown                  Kind = 0
	KindLogin                    Kind = 1
	KindLoginResponse            Kind = 2
	KindLogout                   Kind = 3
	KindLogoutResponse           Kind = 4
	KindHeartbeat                Kind = 5
	KindConnectionClose          Kind = 6
	KindReject                   Kind = 7
	KindOrderAdd                 Kind = 10
	KindOrderAddResponse         Kind = 11
	KindOrderModify              Kind = 12
	KindOrderModifyResponse      Kind = 13
	KindOrderCancel              Kind = 14
	KindOrderCancelResponse      Kind = 15
	KindTrade                    Kind = 16
	KindOrderMassCancel          Kind = 17
	KindOrderMassCancelResponse  Kind = 18
	KindMassQuote                Kind = 20
	KindMassQuoteResponse        Kind = 21
	KindTradeCaptureReportSingle Kind = 30
	KindTradeCaptureReportDual   Kind = 31
)

// Kinds lists every modeled kind in type-code order.
var Kinds = []Kind{
	KindLogin,
	KindLoginResponse,
	KindLogout,
	KindLogoutResponse,
	KindHeartbeat,
	KindConnectionClose,
	KindReject,
	KindOrderAdd,
	KindOrderAddResponse,
	KindOrderModify,
	KindOrderModifyResponse,
	KindOrderCancel,
	KindOrderCancelResponse,
	KindTrade,
	KindOrderMassCancel,
	KindOrderMassCancelResponse,
	KindMassQuote,
	KindMassQuoteResponse,
	KindTradeCaptureReportSingle,
	KindTradeCaptureReportDual,
}

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "Login"
	case KindLoginResponse:
		return "LoginResponse"
	case KindLogout:
		return "Logout"
	case KindLogoutResponse:
		return "LogoutResponse"
	case KindHeartbeat:
		return "Heartbeat"
	case KindConnectionClose:
		return "ConnectionClose"
	case KindReject:
		return "Reject"
	case KindOrderAdd:
		return "OrderAdd"
	case KindOrderAddResponse:
		return "OrderAddResponse"
	case KindOrderModify:
		return "OrderModify"
	case KindOrderModifyResponse:
		return "OrderModifyResponse"
	case KindOrderCancel:
		return "OrderCancel"
	case KindOrderCancelResponse:
		return "OrderCancelResponse"
	case KindTrade:
		return "Trade"
	case KindOrderMassCancel:
		return "OrderMassCancel"
	case KindOrderMassCancelResponse:
		return "OrderMassCancelResponse"
	case KindMassQuote:
		return "MassQuote"
	case KindMassQuoteResponse:
		return "MassQuoteResponse"
	case KindTradeCaptureReportSingle:
		return "TradeCaptureReportSingle"
	case KindTradeCaptureReportDual:
		return "TradeCaptureReportDual"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(k))
	}
}

// Known reports whether k has a schema.
func (k Kind) Known() bool {
	_, ok := schemas[k]
	return ok
}
