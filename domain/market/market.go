// Package market routes engine operations to per-maturity order books
// for one currency. The host owns one Market per currency and is
// responsible for serializing calls into it.
package market

import (
	"errors"
	"fmt"

	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
)

var (
	ErrNoOrderBook     = errors.New("no order book found")
	ErrInvalidMaturity = errors.New("invalid maturity")
)

// Config tunes every order book the market creates.
type Config struct {
	// CircuitBreakerRange caps per-call price movement, in price
	// points. 0 disables the breaker.
	CircuitBreakerRange int64
}

// Market owns the rotating set of order books for one currency, one
// book per maturity. Order and book ids are assigned from local
// monotonic counters, which keeps WAL replay deterministic as long as
// operations are re-applied in their original order.
type Market struct {
	currency string
	clock    Clock
	cfg      Config

	books       map[uint64]*orderbook.Book
	bookIDs     []uint64
	nextBookID  uint64
	nextOrderID uint64
}

// New builds an empty market on the system clock. Use SetClock to
// drive lifecycle transitions from a replay or test clock.
func New(currency string, cfg Config) *Market {
	return &Market{
		currency: currency,
		clock:    SystemClock{},
		cfg:      cfg,
		books:    make(map[uint64]*orderbook.Book),
	}
}

func (m *Market) Currency() string { return m.currency }

// SetClock swaps the clock. Used after replay to hand the market back
// to real time.
func (m *Market) SetClock(c Clock) { m.clock = c }

// CreateOrderBook opens a new maturity slot. The book pre-opens at
// preOpening and matures at maturity; referencePrice (0 = none) seeds
// the circuit breaker and the opening-auction tie-break.
func (m *Market) CreateOrderBook(preOpening, maturity, referencePrice int64) (uint64, error) {
	if maturity <= preOpening {
		return 0, fmt.Errorf("%w: maturity %d not after pre-opening %d", ErrInvalidMaturity, maturity, preOpening)
	}
	m.nextBookID++
	id := m.nextBookID
	m.books[id] = orderbook.NewBook(id, preOpening, maturity, orderbook.Config{
		CircuitBreakerRange: m.cfg.CircuitBreakerRange,
		ReferencePrice:      referencePrice,
	})
	m.bookIDs = append(m.bookIDs, id)
	return id, nil
}

// RestoreOrderBook reinstates a book under its original id when
// rebuilding from a snapshot.
func (m *Market) RestoreOrderBook(id uint64, preOpening, maturity, referencePrice int64) (*orderbook.Book, error) {
	if _, ok := m.books[id]; ok {
		return nil, fmt.Errorf("order book %d already exists", id)
	}
	b := orderbook.NewBook(id, preOpening, maturity, orderbook.Config{
		CircuitBreakerRange: m.cfg.CircuitBreakerRange,
		ReferencePrice:      referencePrice,
	})
	m.books[id] = b
	m.bookIDs = append(m.bookIDs, id)
	if id > m.nextBookID {
		m.nextBookID = id
	}
	return b, nil
}

// SetNextOrderID fast-forwards the order id counter after replay.
func (m *Market) SetNextOrderID(id uint64) {
	if id > m.nextOrderID {
		m.nextOrderID = id
	}
}

// OrderBookIDs returns book ids in creation order.
func (m *Market) OrderBookIDs() []uint64 {
	out := make([]uint64, len(m.bookIDs))
	copy(out, m.bookIDs)
	return out
}

// Book returns the order book with the given id.
func (m *Market) Book(id uint64) (*orderbook.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNoOrderBook
	}
	return b, nil
}

// PlaceOrder submits an order to one book and returns the assigned
// order id with the structured fill result.
func (m *Market) PlaceOrder(bookID uint64, side orderbook.Side, unitPrice, amount int64, maker string) (orderbook.PlaceResult, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.PlaceResult{}, err
	}
	id := m.nextOrderID + 1
	res, err := b.PlaceOrder(m.clock.Now(), side, unitPrice, amount, maker, id)
	if err != nil {
		return orderbook.PlaceResult{}, err
	}
	m.nextOrderID = id
	return res, nil
}

func (m *Market) CancelOrder(bookID, orderID uint64, caller string) (orderbook.Order, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.Order{}, err
	}
	return b.CancelOrder(m.clock.Now(), orderID, caller)
}

func (m *Market) UnwindPosition(bookID uint64, maker string, netFutureValue int64) (orderbook.UnwindResult, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.UnwindResult{}, err
	}
	return b.UnwindPosition(m.clock.Now(), maker, netFutureValue)
}

func (m *Market) RunItayose(bookID uint64) (orderbook.ItayoseResult, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.ItayoseResult{}, err
	}
	return b.RunItayose(m.clock.Now())
}

func (m *Market) GetOrder(bookID, orderID uint64) (orderbook.Order, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.Order{}, err
	}
	return b.GetOrder(orderID)
}

func (m *Market) BestLendPrice(bookID uint64) (int64, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return 0, err
	}
	p, _ := b.BestLendPrice()
	return p, nil
}

func (m *Market) BestBorrowPrice(bookID uint64) (int64, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return 0, err
	}
	p, _ := b.BestBorrowPrice()
	return p, nil
}

func (m *Market) Detail(bookID uint64) (orderbook.Detail, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return orderbook.Detail{}, err
	}
	return b.Detail(m.clock.Now()), nil
}

func (m *Market) EstimateDropFromFirst(bookID uint64, target, limitPrice int64) (int64, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return 0, err
	}
	return b.EstimateDropFromFirst(target, limitPrice), nil
}

func (m *Market) EstimateDropFromLast(bookID uint64, target, limitPrice int64) (int64, error) {
	b, err := m.Book(bookID)
	if err != nil {
		return 0, err
	}
	return b.EstimateDropFromLast(target, limitPrice), nil
}

// NextOrderID returns the last assigned order id.
func (m *Market) NextOrderID() uint64 { return m.nextOrderID }
