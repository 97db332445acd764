// Package depth periodically publishes a top-of-book summary for
// every order book. The stream is best effort; a missed tick is
// superseded by the next one.
package depth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Secured-Finance/contracts-sub003/infra/kafka"
	"github.com/Secured-Finance/contracts-sub003/infra/metrics"
	"github.com/Secured-Finance/contracts-sub003/service"
)

type Update struct {
	Currency        string `json:"currency"`
	OrderBookID     uint64 `json:"order_book_id"`
	BestLendPrice   int64  `json:"best_lend_price"`
	BestBorrowPrice int64  `json:"best_borrow_price"`
	MidPrice        int64  `json:"mid_price"`
	LastFilledPrice int64  `json:"last_filled_price"`
	TotalLend       int64  `json:"total_lend_amount"`
	TotalBorrow     int64  `json:"total_borrow_amount"`
	Time            int64  `json:"time"`
}

type Publisher struct {
	svc      *service.MarketService
	producer *kafka.Producer
	interval time.Duration
	stats    *metrics.Metrics
	log      *slog.Logger
}

func NewPublisher(
	svc *service.MarketService,
	producer *kafka.Producer,
	interval time.Duration,
	stats *metrics.Metrics,
	logger *slog.Logger,
) *Publisher {
	return &Publisher{
		svc:      svc,
		producer: producer,
		interval: interval,
		stats:    stats,
		log:      logger,
	}
}

func (p *Publisher) Start(ctx context.Context) {
	p.log.Info("depth publisher started", "interval", p.interval)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.publishOnce(ctx)
			}
		}
	}()
}

func (p *Publisher) publishOnce(ctx context.Context) {
	now := time.Now().Unix()
	currency := p.svc.Market().Currency()

	for _, id := range p.svc.OrderBookIDs() {
		d, err := p.svc.Detail(id)
		if err != nil {
			continue
		}

		p.stats.BookDepth.WithLabelValues(fmt.Sprint(id), "lend").Set(float64(d.TotalLendAmount))
		p.stats.BookDepth.WithLabelValues(fmt.Sprint(id), "borrow").Set(float64(d.TotalBorrowAmount))

		body, err := json.Marshal(Update{
			Currency:        currency,
			OrderBookID:     d.OrderBookID,
			BestLendPrice:   d.BestLendPrice,
			BestBorrowPrice: d.BestBorrowPrice,
			MidPrice:        d.MidPrice,
			LastFilledPrice: d.LastFilledPrice,
			TotalLend:       d.TotalLendAmount,
			TotalBorrow:     d.TotalBorrowAmount,
			Time:            now,
		})
		if err != nil {
			continue
		}

		key := []byte(fmt.Sprintf("%s-%d", currency, id))
		if err := p.producer.Send(ctx, key, body); err != nil {
			p.log.Warn("depth publish failed", "book_id", id, "err", err)
		}
	}
}
