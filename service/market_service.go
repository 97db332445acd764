package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Secured-Finance/contracts-sub003/domain/market"
	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
	"github.com/Secured-Finance/contracts-sub003/infra/metrics"
	"github.com/Secured-Finance/contracts-sub003/infra/outbox"
	"github.com/Secured-Finance/contracts-sub003/infra/sequence"
	"github.com/Secured-Finance/contracts-sub003/infra/wal"
)

// FillConsumer receives every fill synchronously, inside the write
// lock, in matching order. The host settles balances here.
type FillConsumer func(currency string, bookID uint64, fill orderbook.Fill)

// FillEvent is the outbox payload handed to the broker.
type FillEvent struct {
	EventID      string `json:"event_id"`
	Currency     string `json:"currency"`
	OrderBookID  uint64 `json:"order_book_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker,omitempty"`
	Side         string `json:"side"`
	UnitPrice    int64  `json:"unit_price"`
	Amount       int64  `json:"amount"`
	FutureValue  int64  `json:"future_value"`
	Time         int64  `json:"time"`
}

type Config struct {
	Currency            string
	CircuitBreakerRange int64
}

// MarketService serializes all writes to one market. Every mutation
// runs under mu: apply the domain operation, append the log record,
// persist fills to the outbox, then hand fills to the consumer.
type MarketService struct {
	mu sync.RWMutex

	mkt    *market.Market
	clock  market.Clock
	seqGen *sequence.Sequencer
	wal    *wal.WAL
	outbox *outbox.Outbox
	stats  *metrics.Metrics
	log    *slog.Logger

	consumer FillConsumer
}

func NewMarketService(
	cfg Config,
	w *wal.WAL,
	ob *outbox.Outbox,
	stats *metrics.Metrics,
	logger *slog.Logger,
	consumer FillConsumer,
) *MarketService {
	clock := market.SystemClock{}
	mkt := market.New(cfg.Currency, market.Config{CircuitBreakerRange: cfg.CircuitBreakerRange})
	mkt.SetClock(clock)

	return &MarketService{
		mkt:      mkt,
		clock:    clock,
		seqGen:   sequence.New(0),
		wal:      w,
		outbox:   ob,
		stats:    stats,
		log:      logger,
		consumer: consumer,
	}
}

// Market exposes the underlying market for read-only callers.
func (s *MarketService) Market() *market.Market { return s.mkt }

func (s *MarketService) Sequencer() *sequence.Sequencer { return s.seqGen }

// CreateOrderBook opens a new maturity. Book IDs are assigned by the
// market in creation order, which keeps replay deterministic.
func (s *MarketService) CreateOrderBook(preOpening, maturity, referencePrice int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookID, err := s.mkt.CreateOrderBook(preOpening, maturity, referencePrice)
	if err != nil {
		return 0, err
	}

	payload := fmt.Sprintf("%d|%d|%d", preOpening, maturity, referencePrice)
	if err := s.append(wal.RecordCreateBook, payload); err != nil {
		return 0, err
	}

	s.log.Info("order book created",
		"book_id", bookID,
		"pre_opening", preOpening,
		"maturity", maturity,
	)
	return bookID, nil
}

func (s *MarketService) PlaceOrder(bookID uint64, side orderbook.Side, unitPrice, amount int64, maker string) (orderbook.PlaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.mkt.PlaceOrder(bookID, side, unitPrice, amount, maker)
	if err != nil {
		s.stats.OrdersRejected.Inc()
		return orderbook.PlaceResult{}, err
	}
	s.stats.MatchingSeconds.Observe(time.Since(start).Seconds())
	s.stats.OrdersPlaced.Inc()

	payload := fmt.Sprintf("%d|%d|%d|%d|%s", bookID, side, unitPrice, amount, maker)
	if err := s.append(wal.RecordPlace, payload); err != nil {
		return orderbook.PlaceResult{}, err
	}

	s.emitFills(bookID, res.Fills)

	s.log.Info("order placed",
		"book_id", bookID,
		"order_id", res.OrderID,
		"side", side.String(),
		"unit_price", unitPrice,
		"amount", amount,
		"filled", res.FilledAmount,
		"fills", len(res.Fills),
	)
	return res, nil
}

func (s *MarketService) CancelOrder(bookID, orderID uint64, caller string) (orderbook.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.mkt.CancelOrder(bookID, orderID, caller)
	if err != nil {
		return orderbook.Order{}, err
	}
	s.stats.OrdersCanceled.Inc()

	payload := fmt.Sprintf("%d|%d|%s", bookID, orderID, caller)
	if err := s.append(wal.RecordCancel, payload); err != nil {
		return orderbook.Order{}, err
	}

	s.log.Info("order canceled", "book_id", bookID, "order_id", orderID)
	return o, nil
}

func (s *MarketService) UnwindPosition(bookID uint64, maker string, netFutureValue int64) (orderbook.UnwindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.mkt.UnwindPosition(bookID, maker, netFutureValue)
	if err != nil {
		return orderbook.UnwindResult{}, err
	}

	payload := fmt.Sprintf("%d|%s|%d", bookID, maker, netFutureValue)
	if err := s.append(wal.RecordUnwind, payload); err != nil {
		return orderbook.UnwindResult{}, err
	}

	s.emitFills(bookID, res.Fills)

	s.log.Info("position unwound",
		"book_id", bookID,
		"maker", maker,
		"net_future_value", netFutureValue,
		"filled_future_value", res.FilledFutureValue,
	)
	return res, nil
}

func (s *MarketService) RunItayose(bookID uint64) (orderbook.ItayoseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.mkt.RunItayose(bookID)
	if err != nil {
		return orderbook.ItayoseResult{}, err
	}
	s.stats.ItayoseRuns.Inc()

	if err := s.append(wal.RecordItayose, fmt.Sprintf("%d", bookID)); err != nil {
		return orderbook.ItayoseResult{}, err
	}

	s.emitFills(bookID, res.Fills)

	s.log.Info("itayose executed",
		"book_id", bookID,
		"clearing_price", res.ClearingPrice,
		"matched_amount", res.MatchedAmount,
	)
	return res, nil
}

//
// Queries
//

func (s *MarketService) GetOrder(bookID, orderID uint64) (orderbook.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.GetOrder(bookID, orderID)
}

func (s *MarketService) Detail(bookID uint64) (orderbook.Detail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.Detail(bookID)
}

func (s *MarketService) OrderBookIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.OrderBookIDs()
}

func (s *MarketService) BestLendPrice(bookID uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.BestLendPrice(bookID)
}

func (s *MarketService) BestBorrowPrice(bookID uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.BestBorrowPrice(bookID)
}

func (s *MarketService) EstimateDropFromFirst(bookID uint64, target, limitPrice int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.EstimateDropFromFirst(bookID, target, limitPrice)
}

func (s *MarketService) EstimateDropFromLast(bookID uint64, target, limitPrice int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mkt.EstimateDropFromLast(bookID, target, limitPrice)
}

//
// Internals
//

func (s *MarketService) append(t wal.RecordType, payload string) error {
	rec := wal.NewRecord(t, s.seqGen.Next(), s.clock.Now(), []byte(payload))
	if err := s.wal.Append(rec); err != nil {
		s.log.Error("wal append failed", "seq", rec.Seq, "err", err)
		return err
	}
	s.stats.WALAppends.Inc()
	return nil
}

// emitFills persists every fill to the outbox and invokes the host
// consumer. Outbox keys combine the log sequence with the fill index,
// so they stay unique across restarts.
func (s *MarketService) emitFills(bookID uint64, fills []orderbook.Fill) {
	if len(fills) == 0 {
		return
	}
	now := s.clock.Now()
	walSeq := s.seqGen.Current()

	for i, f := range fills {
		s.stats.FillsExecuted.Inc()

		ev := FillEvent{
			EventID:      uuid.NewString(),
			Currency:     s.mkt.Currency(),
			OrderBookID:  bookID,
			MakerOrderID: f.MakerOrderID,
			Maker:        f.Maker,
			Taker:        f.Taker,
			Side:         f.Side.String(),
			UnitPrice:    f.UnitPrice,
			Amount:       f.Amount,
			FutureValue:  f.FutureValue,
			Time:         now,
		}

		body, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("fill event encode failed", "err", err)
			continue
		}

		eventSeq := walSeq<<16 | uint64(i)
		if err := s.outbox.PutNew(eventSeq, body); err != nil {
			s.log.Error("outbox put failed", "event_seq", eventSeq, "err", err)
		}

		if s.consumer != nil {
			s.consumer(s.mkt.Currency(), bookID, f)
		}
	}
}
