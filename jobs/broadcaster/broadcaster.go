// Package broadcaster drains the fill outbox into Kafka. Entries are
// marked SENT before publishing and ACKED after the broker confirms,
// so the failure mode is duplicate delivery, never loss. Consumers
// deduplicate on the event id embedded in the payload.
package broadcaster

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/Secured-Finance/contracts-sub003/infra/metrics"
	"github.com/Secured-Finance/contracts-sub003/infra/outbox"
)

// syncProducer is the slice of sarama.SyncProducer the broadcaster
// uses.
type syncProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer syncProducer
	topic    string
	interval time.Duration
	stats    *metrics.Metrics
	log      *slog.Logger
}

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	stats *metrics.Metrics,
	logger *slog.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: 250 * time.Millisecond,
		stats:    stats,
		log:      logger,
	}, nil
}

func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started", "topic", b.topic)

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

// drainOnce publishes NEW entries and re-drives SENT entries left
// behind by a crash between publish and ack.
func (b *Broadcaster) drainOnce() {
	var pending int64

	for _, state := range []outbox.State{outbox.StateSent, outbox.StateNew} {
		_ = b.outbox.ScanByState(state, func(seq uint64, e outbox.Entry) error {
			pending++

			if err := b.outbox.UpdateState(seq, outbox.StateSent, e.Retries+1); err != nil {
				return nil
			}

			_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
				Topic: b.topic,
				Value: sarama.ByteEncoder(e.Payload),
			})
			if err != nil {
				b.log.Warn("publish failed, will retry", "event_seq", seq, "err", err)
				return nil
			}

			if err := b.outbox.Delete(seq); err != nil {
				return nil
			}
			pending--
			return nil
		})
	}

	b.stats.OutboxPending.Set(float64(pending))
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
