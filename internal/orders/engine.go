package orders

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

const (
	DefaultMaxOrders         = 10000
	DefaultCorrelationWindow = 30 * time.Second
)

type Config struct {
	MaxOrders         int
	CorrelationWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOrders:         DefaultMaxOrders,
		CorrelationWindow: DefaultCorrelationWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxOrders <= 0 {
		c.MaxOrders = DefaultMaxOrders
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}
	return c
}

// Stats are cumulative engine counters plus current sizes.
type Stats struct {
	Orders        int               `json:"orders"`
	Pending       int               `json:"pending"`
	Applied       uint64            `json:"applied"`
	Ignored       uint64            `json:"ignored"`
	Skipped       uint64            `json:"skipped"`
	Hits          uint64            `json:"correlation_hits"`
	Misses        uint64            `json:"correlation_misses"`
	Evictions     uint64            `json:"evictions"`
	Rejected      uint64            `json:"rejected_requests"`
	MassCancels   uint64            `json:"mass_cancels"`
	ExpiredAdds   uint64            `json:"expired_requests"`
	ChangesByKind map[string]uint64 `json:"changes_by_kind"`
}

// Observer receives changes in the order Apply produced them. Observers run
// on the applying goroutine and must not block.
type Observer func(Change)

type entry struct {
	order Order
	elem  *list.Element
}

// Engine folds decoded messages into per-order state. Apply is meant to be
// called from one goroutine; reads are safe from any.
type Engine struct {
	cfg     Config
	pending *PendingBuffer

	mu      sync.RWMutex
	byID    map[uint64]*entry
	byToken map[string]*entry
	age     *list.List
	stats   Stats

	obsMu     sync.Mutex
	observers []subscription
	nextObs   int
}

type subscription struct {
	id int
	fn Observer
}

func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		pending: NewPendingBuffer(cfg.CorrelationWindow),
		byID:    make(map[uint64]*entry),
		byToken: make(map[string]*entry),
		age:     list.New(),
		stats:   Stats{ChangesByKind: make(map[string]uint64)},
	}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Engine) Subscribe(fn Observer) func() {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	id := e.nextObs
	e.nextObs++
	e.observers = append(e.observers, subscription{id: id, fn: fn})
	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		kept := e.observers[:0]
		for _, s := range e.observers {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		e.observers = kept
	}
}

func (e *Engine) publish(c Change) {
	e.obsMu.Lock()
	subs := append([]subscription(nil), e.observers...)
	e.obsMu.Unlock()
	for _, s := range subs {
		s.fn(c)
	}
}

// Apply folds msg into engine state. It reports false when msg did not
// touch any order: non-order kinds, submissions that only enter the
// pending buffer, and messages without a decoded body.
func (e *Engine) Apply(msg mep.Message) (Change, bool) {
	change, ok := e.apply(msg)
	if ok {
		e.publish(change)
	}
	return change, ok
}

func (e *Engine) apply(msg mep.Message) (Change, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.Body == nil {
		e.stats.Skipped++
		return Change{}, false
	}
	at := eventTime(msg)
	c := Change{Source: msg.Kind, Sequence: msg.Header.Sequence, At: at}

	var target *entry
	switch body := msg.Body.(type) {
	case mep.OrderAdd:
		e.expirePending(at)
		e.pending.Upsert(PendingRequest{
			ClientToken: body.ClientToken,
			Sequence:    msg.Header.Sequence,
			SentAt:      at,
			Request:     body,
		})
		e.stats.Applied++
		return Change{}, false

	case mep.OrderAddResponse:
		target, c.Kind = e.applyAddResponse(body, at, &c)

	case mep.OrderModify:
		target, c.Miss = e.locate(body.OrderID, body.ClientToken, at)
		if target == nil {
			break
		}
		mod := target.order.proposeModification(body, at)
		target.order.Modifications = append(target.order.Modifications, mod)
		c.Kind = ChangeModifyRequested

	case mep.OrderModifyResponse:
		target, c.Miss = e.locate(body.OrderID, "", at)
		if target == nil {
			break
		}
		o := &target.order
		if i := o.pendingModification(); i >= 0 {
			m := &o.Modifications[i]
			m.ResolvedAt = at
			if body.Status == mep.OrdStatusRejected {
				m.Outcome = OutcomeRejected
				m.Reason = body.Reason
			} else {
				m.Outcome = OutcomeAccepted
				m.PriorityRetained = body.PriorityRetained
				o.applyModification(*m)
			}
		} else if c.Miss == MissNone {
			c.Miss = MissNoPendingAttempt
		}
		o.FilledQty = body.FilledQty
		o.Status = body.Status
		o.ExecReason = mep.ExecReasonModify
		o.settle()
		c.Kind = ChangeModifyResolved

	case mep.OrderCancel:
		target, c.Miss = e.locate(body.OrderID, "", at)
		if target == nil {
			break
		}
		target.order.Cancels = append(target.order.Cancels, CancelAttempt{At: at, Outcome: OutcomePending})
		c.Kind = ChangeCancelRequested

	case mep.OrderCancelResponse:
		target, c.Miss = e.locate(body.OrderID, "", at)
		if target == nil {
			break
		}
		o := &target.order
		if i := o.pendingCancel(); i >= 0 {
			a := &o.Cancels[i]
			a.ResolvedAt = at
			if body.Status == mep.OrdStatusCancelled {
				a.Outcome = OutcomeAccepted
			} else {
				a.Outcome = OutcomeRejected
				a.Reason = body.Reason
			}
		} else if c.Miss == MissNone {
			c.Miss = MissNoPendingAttempt
		}
		o.Status = body.Status
		o.ExecReason = body.ExecReason
		c.Kind = ChangeCancelResolved

	case mep.Trade:
		target, c.Miss = e.locate(body.OrderID, "", at)
		if target == nil {
			break
		}
		o := &target.order
		o.Trades = append(o.Trades, TradeRecord{
			TradeID:   body.TradeID,
			Price:     body.Price,
			Quantity:  body.Quantity,
			LeavesQty: body.LeavesQty,
			At:        at,
		})
		o.FilledQty += body.Quantity
		o.CurrentQty = body.LeavesQty
		o.OriginalQty = o.FilledQty + o.CurrentQty
		if body.LeavesQty == 0 {
			o.Status = mep.OrdStatusFilled
		} else {
			o.Status = mep.OrdStatusPartiallyFilled
		}
		o.ExecReason = mep.ExecReasonTrade
		c.Kind = ChangeTraded

	case mep.Reject:
		if req, ok := e.pending.TakeSequence(body.RefSequence); ok {
			e.stats.Rejected++
			log.Debug().Msgf("orders.engine submission rejected token=%q ref_seq=%d reason=%d", req.ClientToken, body.RefSequence, body.Reason)
		}
		e.stats.Applied++
		return Change{}, false

	case mep.OrderMassCancel, mep.OrderMassCancelResponse:
		e.stats.MassCancels++
		e.stats.Applied++
		return Change{}, false

	default:
		e.stats.Ignored++
		return Change{}, false
	}

	e.stats.Applied++
	if c.Miss != MissNone {
		e.stats.Misses++
		log.Debug().Msgf("orders.engine correlation miss kind=%s seq=%d miss=%s", msg.Kind, msg.Header.Sequence, c.Miss)
	} else {
		e.stats.Hits++
	}
	if target == nil {
		return c, false
	}
	target.order.UpdatedAt = at
	c.Order = target.order.Clone()
	e.stats.ChangesByKind[c.Kind.String()]++
	return c, true
}

func (e *Engine) applyAddResponse(body mep.OrderAddResponse, at time.Time, c *Change) (*entry, ChangeKind) {
	kind := ChangeAcknowledged
	target, ok := e.byID[body.OrderID]
	if ok && target.order.Correlated {
		acknowledge(&target.order, body)
		return target, kind
	}

	e.expirePending(at)
	req, found := e.pending.Take(at)
	if !found {
		c.Miss = MissNoPendingRequest
	}
	// A modify or cancel sent by token before the ack already holds an
	// entry without an id; the ack completes that entry.
	if !ok && found {
		if held, byToken := e.byToken[req.ClientToken]; byToken && held.order.OrderID == 0 {
			target, ok = held, true
			target.order.OrderID = body.OrderID
			e.byID[body.OrderID] = target
		}
	}
	if !ok {
		target = e.admit(Order{OrderID: body.OrderID}, at)
		kind = ChangeCreated
	}
	if found {
		target.order.adopt(req)
		e.indexToken(target)
	}
	acknowledge(&target.order, body)
	return target, kind
}

func acknowledge(o *Order, body mep.OrderAddResponse) {
	o.PublicOrderID = body.PublicOrderID
	o.DisplayQty = body.DisplayQty
	o.FilledQty = body.FilledQty
	o.Status = body.Status
	o.ExecReason = body.ExecReason
	o.settle()
}

func (e *Engine) expirePending(at time.Time) {
	if n := e.pending.Expire(at); n > 0 {
		e.stats.ExpiredAdds += uint64(n)
	}
}

// locate finds an order by id, then by token. Unknown references create an
// entry so the event is still recorded; only a message with neither an id
// nor a token is dropped.
func (e *Engine) locate(orderID uint64, token string, at time.Time) (*entry, Miss) {
	if orderID != 0 {
		if t, ok := e.byID[orderID]; ok {
			return t, MissNone
		}
	}
	if token != "" {
		if t, ok := e.byToken[token]; ok {
			if t.order.OrderID == 0 && orderID != 0 {
				t.order.OrderID = orderID
				e.byID[orderID] = t
			}
			return t, MissNone
		}
	}
	if orderID == 0 && token == "" {
		return nil, MissUnknownOrder
	}
	t := e.admit(Order{OrderID: orderID, ClientToken: token}, at)
	if token != "" {
		e.indexToken(t)
	}
	return t, MissUnknownOrder
}

// admit inserts a new entry, evicting the oldest one first when the bound
// is reached.
func (e *Engine) admit(o Order, at time.Time) *entry {
	for e.age.Len() >= e.cfg.MaxOrders {
		e.evictOldest()
	}
	o.CreatedAt = at
	o.UpdatedAt = at
	t := &entry{order: o}
	t.elem = e.age.PushBack(t)
	if o.OrderID != 0 {
		e.byID[o.OrderID] = t
	}
	return t
}

func (e *Engine) evictOldest() {
	front := e.age.Front()
	if front == nil {
		return
	}
	t := front.Value.(*entry)
	e.age.Remove(front)
	if cur, ok := e.byID[t.order.OrderID]; ok && cur == t {
		delete(e.byID, t.order.OrderID)
	}
	if cur, ok := e.byToken[t.order.ClientToken]; ok && cur == t {
		delete(e.byToken, t.order.ClientToken)
	}
	e.stats.Evictions++
	log.Debug().Msgf("orders.engine evicted order_id=%d token=%q", t.order.OrderID, t.order.ClientToken)
}

func (e *Engine) indexToken(t *entry) {
	if t.order.ClientToken != "" {
		e.byToken[t.order.ClientToken] = t
	}
}

// Order returns a snapshot of the order with the given id.
func (e *Engine) Order(orderID uint64) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.byID[orderID]
	if !ok {
		return Order{}, false
	}
	return t.order.Clone(), true
}

func (e *Engine) OrderByToken(token string) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.byToken[token]
	if !ok {
		return Order{}, false
	}
	return t.order.Clone(), true
}

// Orders returns snapshots of every tracked order, oldest first.
func (e *Engine) Orders() []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Order, 0, e.age.Len())
	for el := e.age.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).order.Clone())
	}
	return out
}

func (e *Engine) Pending() []PendingRequest {
	return e.pending.List()
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.stats
	s.Orders = e.age.Len()
	s.Pending = e.pending.Len()
	s.ChangesByKind = make(map[string]uint64, len(e.stats.ChangesByKind))
	for k, v := range e.stats.ChangesByKind {
		s.ChangesByKind[k] = v
	}
	return s
}

// eventTime prefers the gateway send time and falls back to local receipt.
func eventTime(msg mep.Message) time.Time {
	if msg.Header.SendTime != 0 {
		return msg.Header.Time()
	}
	return msg.ReceivedAt
}
