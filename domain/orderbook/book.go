package orderbook

// State is the lifecycle position of one order book.
type State uint8

const (
	StatePreOpen State = iota
	StateItayoseWindow
	StateOpen
	StateMatured
)

func (s State) String() string {
	switch s {
	case StatePreOpen:
		return "PRE_OPEN"
	case StateItayoseWindow:
		return "ITAYOSE"
	case StateOpen:
		return "OPEN"
	default:
		return "MATURED"
	}
}

// Config tunes one order book.
type Config struct {
	// CircuitBreakerRange caps, in price points, how far a single taker
	// walk may move from the last filled price. 0 disables the breaker.
	CircuitBreakerRange int64
	// ReferencePrice is the prior period's price. It seeds the breaker
	// before the first fill and breaks opening-auction price ties.
	ReferencePrice int64
}

// Book is a per-maturity limit order book: one lend tree and one borrow
// tree. The borrow tree's minimum and the lend tree's maximum are the
// most aggressive crossing prices. All methods are single-threaded; the
// host serializes callers per book.
type Book struct {
	id         uint64
	maturity   int64
	preOpening int64

	lend   *Tree
	borrow *Tree

	lastFilledPrice int64
	refPrice        int64
	cbRange         int64
	opened          bool
	seq             uint64
}

// NewBook creates a book that pre-opens and matures at the given Unix
// timestamps.
func NewBook(id uint64, preOpening, maturity int64, cfg Config) *Book {
	return &Book{
		id:         id,
		maturity:   maturity,
		preOpening: preOpening,
		lend:       NewTree(),
		borrow:     NewTree(),
		refPrice:   cfg.ReferencePrice,
		cbRange:    cfg.CircuitBreakerRange,
	}
}

func (b *Book) ID() uint64        { return b.id }
func (b *Book) Maturity() int64   { return b.maturity }
func (b *Book) PreOpening() int64 { return b.preOpening }

// StateAt derives the lifecycle state at the given time. The
// ItayoseWindow to Open transition happens only through RunItayose.
func (b *Book) StateAt(now int64) State {
	if now >= b.maturity {
		return StateMatured
	}
	if !b.opened {
		if now < b.preOpening {
			return StatePreOpen
		}
		return StateItayoseWindow
	}
	return StateOpen
}

// LastFilledPrice returns the price of the most recent fill, or 0 when
// nothing has traded yet.
func (b *Book) LastFilledPrice() int64 { return b.lastFilledPrice }

// ReferencePrice is the fallback center of the circuit breaker band.
func (b *Book) ReferencePrice() int64 { return b.refPrice }

// Opened reports whether the opening auction has run.
func (b *Book) Opened() bool { return b.opened }

// BestLendPrice returns the most aggressive lend price (tree maximum).
func (b *Book) BestLendPrice() (int64, bool) { return b.lend.Last() }

// BestBorrowPrice returns the most aggressive borrow price (tree minimum).
func (b *Book) BestBorrowPrice() (int64, bool) { return b.borrow.First() }

// Detail is a read-only projection of the book.
type Detail struct {
	OrderBookID       uint64
	State             State
	BestLendPrice     int64
	BestBorrowPrice   int64
	MidPrice          int64
	LastFilledPrice   int64
	TotalLendAmount   int64
	TotalBorrowAmount int64
	PreOpening        int64
	Maturity          int64
}

func (b *Book) Detail(now int64) Detail {
	bl, _ := b.lend.Last()
	bb, _ := b.borrow.First()
	var mid int64
	if bl > 0 && bb > 0 {
		mid = (bl + bb) / 2
	}
	return Detail{
		OrderBookID:       b.id,
		State:             b.StateAt(now),
		BestLendPrice:     bl,
		BestBorrowPrice:   bb,
		MidPrice:          mid,
		LastFilledPrice:   b.lastFilledPrice,
		TotalLendAmount:   b.lend.TotalAmount(),
		TotalBorrowAmount: b.borrow.TotalAmount(),
		PreOpening:        b.preOpening,
		Maturity:          b.maturity,
	}
}

// PlaceResult is the structured outcome of PlaceOrder.
type PlaceResult struct {
	OrderID           uint64
	Fills             []Fill
	FilledAmount      int64
	FilledFutureValue int64
	RemainingAmount   int64
	Resting           bool
	IsPreOrder        bool
}

// PlaceOrder validates, matches, and/or rests one order.
//
// A unit price of 0 is a market order. A crossing limit order matches
// up to its limit and any remainder rests on its own side. A market
// order that cannot fill at all returns ErrEmptyOrderBook. During the
// Itayose window only pre-orders are accepted and nothing matches.
//
// The caller is responsible for solvency checks before calling; the
// engine performs no balance accounting.
func (b *Book) PlaceOrder(now int64, side Side, unitPrice, amount int64, maker string, orderID uint64) (PlaceResult, error) {
	if amount <= 0 || amount > MaxAmount {
		return PlaceResult{}, ErrInvalidAmount
	}
	if unitPrice < 0 || unitPrice > MaxUnitPrice {
		return PlaceResult{}, ErrInvalidPrice
	}

	switch b.StateAt(now) {
	case StatePreOpen:
		return PlaceResult{}, ErrMarketNotOpen
	case StateMatured:
		return PlaceResult{}, ErrMarketTerminated
	case StateItayoseWindow:
		if unitPrice == 0 {
			// market orders cannot rest
			return PlaceResult{}, ErrInvalidPrice
		}
		b.seq++
		o := Order{
			ID: orderID, Side: side, UnitPrice: unitPrice, Amount: amount,
			Maker: maker, IsPreOrder: true, Seq: b.seq,
		}
		if err := b.tree(side).Insert(o); err != nil {
			return PlaceResult{}, err
		}
		return PlaceResult{
			OrderID:         orderID,
			RemainingAmount: amount,
			Resting:         true,
			IsPreOrder:      true,
		}, nil
	}

	isMarket := unitPrice == 0
	limit := b.takerLimit(side, unitPrice)

	var res DropResult
	if side == SideLend {
		res = b.borrow.DropFromFirst(amount, limit)
	} else {
		res = b.lend.DropFromLast(amount, limit)
	}
	if isMarket && res.Amount == 0 {
		return PlaceResult{}, ErrEmptyOrderBook
	}
	if res.Amount > 0 {
		b.lastFilledPrice = res.LastPrice
	}

	out := PlaceResult{
		OrderID:           orderID,
		Fills:             b.fillsOf(res, side.Opposite(), maker),
		FilledAmount:      res.Amount,
		FilledFutureValue: res.FutureValue,
		RemainingAmount:   amount - res.Amount,
	}

	if out.RemainingAmount > 0 && !isMarket {
		b.seq++
		o := Order{
			ID: orderID, Side: side, UnitPrice: unitPrice,
			Amount: out.RemainingAmount, Maker: maker, Seq: b.seq,
		}
		if err := b.tree(side).Insert(o); err != nil {
			return PlaceResult{}, err
		}
		out.Resting = true
	}
	return out, nil
}

// CancelOrder removes a resting order. Only the maker may cancel.
func (b *Book) CancelOrder(now int64, orderID uint64, caller string) (Order, error) {
	switch b.StateAt(now) {
	case StatePreOpen:
		return Order{}, ErrMarketNotOpen
	case StateMatured:
		return Order{}, ErrMarketTerminated
	}

	tree := b.lend
	o, ok := tree.Get(orderID)
	if !ok {
		tree = b.borrow
		o, ok = tree.Get(orderID)
	}
	if !ok {
		return Order{}, ErrNoOrderExists
	}
	if o.Maker != caller {
		return Order{}, ErrCallerNotMaker
	}
	return tree.Remove(o.UnitPrice, orderID)
}

// GetOrder returns a copy of a resting order.
func (b *Book) GetOrder(orderID uint64) (Order, error) {
	if o, ok := b.lend.Get(orderID); ok {
		return o, nil
	}
	if o, ok := b.borrow.Get(orderID); ok {
		return o, nil
	}
	return Order{}, ErrNoOrderExists
}

// UnwindResult is the outcome of a best-effort position unwind.
type UnwindResult struct {
	Side                 Side
	Fills                []Fill
	FilledAmount         int64
	FilledFutureValue    int64
	RemainingFutureValue int64
}

// UnwindPosition places a single taker order sized in future value on
// the side opposite to the position's sign. A positive net future value
// is a lend position and is offset by a borrow-side taker, and vice
// versa. Fills stop at the circuit breaker band; any remainder is left
// open, which is a normal result.
func (b *Book) UnwindPosition(now int64, maker string, netFutureValue int64) (UnwindResult, error) {
	switch b.StateAt(now) {
	case StateMatured:
		return UnwindResult{}, ErrMarketTerminated
	case StatePreOpen, StateItayoseWindow:
		return UnwindResult{}, ErrMarketNotOpen
	}
	if netFutureValue == 0 || netFutureValue > MaxAmount || netFutureValue < -MaxAmount {
		return UnwindResult{}, ErrInvalidAmount
	}

	side := SideBorrow
	targetFV := netFutureValue
	if netFutureValue < 0 {
		side = SideLend
		targetFV = -netFutureValue
	}

	limit := b.takerLimit(side, 0)
	var res DropResult
	if side == SideLend {
		res = b.borrow.DropFromFirstByFV(targetFV, limit)
	} else {
		res = b.lend.DropFromLastByFV(targetFV, limit)
	}
	if res.Amount > 0 {
		b.lastFilledPrice = res.LastPrice
	}
	return UnwindResult{
		Side:                 side,
		Fills:                b.fillsOf(res, side.Opposite(), maker),
		FilledAmount:         res.Amount,
		FilledFutureValue:    res.FutureValue,
		RemainingFutureValue: targetFV - res.FutureValue,
	}, nil
}

// EstimateDropFromFirst quotes, without mutating state, the amount a
// first-side walk (borrow tree) would consume under the given limit.
func (b *Book) EstimateDropFromFirst(target, limitPrice int64) int64 {
	return b.borrow.EstimateDropFromFirst(target, limitPrice)
}

// EstimateDropFromLast quotes a last-side walk over the lend tree.
func (b *Book) EstimateDropFromLast(target, limitPrice int64) int64 {
	return b.lend.EstimateDropFromLast(target, limitPrice)
}

// WalkOrders visits every resting order, lend tree ascending first.
func (b *Book) WalkOrders(fn func(o Order) bool) {
	stopped := false
	b.lend.Walk(true, func(o Order) bool {
		if !fn(o) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	b.borrow.Walk(true, fn)
}

// LoadOrder rests an order directly, bypassing matching. Used only when
// rebuilding a book from a snapshot.
func (b *Book) LoadOrder(o Order) error {
	if o.Seq > b.seq {
		b.seq = o.Seq
	}
	return b.tree(o.Side).Insert(o)
}

// RestoreState reinstates fields that are not derivable from resting
// orders. Used only when rebuilding from a snapshot.
func (b *Book) RestoreState(lastFilledPrice int64, opened bool) {
	b.lastFilledPrice = lastFilledPrice
	b.opened = opened
}

func (b *Book) tree(side Side) *Tree {
	if side == SideLend {
		return b.lend
	}
	return b.borrow
}

// takerLimit turns the circuit breaker band into an implicit limit
// price for one taker walk. Lend takers walk the borrow tree upward and
// are capped above; borrow takers walk the lend tree downward and are
// floored below. unitPrice 0 (market) is bounded by the band alone.
func (b *Book) takerLimit(side Side, unitPrice int64) int64 {
	ref := b.lastFilledPrice
	if ref == 0 {
		ref = b.refPrice
	}
	if b.cbRange <= 0 || ref == 0 {
		return unitPrice
	}
	if side == SideLend {
		ceil := ref + b.cbRange
		if ceil > MaxUnitPrice {
			ceil = MaxUnitPrice
		}
		if unitPrice == 0 || unitPrice > ceil {
			return ceil
		}
		return unitPrice
	}
	floor := ref - b.cbRange
	if floor < 1 {
		floor = 1
	}
	if unitPrice == 0 || unitPrice < floor {
		return floor
	}
	return unitPrice
}

func (b *Book) fillsOf(res DropResult, makerSide Side, taker string) []Fill {
	if len(res.Taken) == 0 {
		return nil
	}
	fills := make([]Fill, 0, len(res.Taken))
	for _, tk := range res.Taken {
		fills = append(fills, Fill{
			MakerOrderID:       tk.OrderID,
			Maker:              tk.Maker,
			Taker:              taker,
			Side:               makerSide,
			UnitPrice:          tk.UnitPrice,
			Amount:             tk.Amount,
			FutureValue:        FutureValueOf(tk.Amount, tk.UnitPrice),
			MakerFullyConsumed: tk.FullyConsumed,
		})
	}
	return fills
}
