package broadcaster

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Secured-Finance/contracts-sub003/infra/metrics"
	"github.com/Secured-Finance/contracts-sub003/infra/outbox"
)

type fakeProducer struct {
	sent []string
	fail bool
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if p.fail {
		return 0, 0, errors.New("broker unavailable")
	}
	body, _ := msg.Value.Encode()
	p.sent = append(p.sent, string(body))
	return 0, int64(len(p.sent)), nil
}

func (p *fakeProducer) Close() error { return nil }

func newTestBroadcaster(t *testing.T, producer syncProducer) (*Broadcaster, *outbox.Outbox) {
	t.Helper()

	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    "fills",
		interval: time.Millisecond,
		stats:    metrics.New("test"),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, ob
}

func TestDrainPublishesAndDeletes(t *testing.T) {
	producer := &fakeProducer{}
	b, ob := newTestBroadcaster(t, producer)

	require.NoError(t, ob.PutNew(1, []byte("a")))
	require.NoError(t, ob.PutNew(2, []byte("b")))

	b.drainOnce()

	assert.Equal(t, []string{"a", "b"}, producer.sent)
	for _, state := range []outbox.State{outbox.StateNew, outbox.StateSent} {
		var n int
		require.NoError(t, ob.ScanByState(state, func(uint64, outbox.Entry) error {
			n++
			return nil
		}))
		assert.Zero(t, n, state.String())
	}
}

func TestFailedPublishStaysForRetry(t *testing.T) {
	producer := &fakeProducer{fail: true}
	b, ob := newTestBroadcaster(t, producer)

	require.NoError(t, ob.PutNew(1, []byte("a")))
	b.drainOnce()

	var retries uint32
	var n int
	require.NoError(t, ob.ScanByState(outbox.StateSent, func(_ uint64, e outbox.Entry) error {
		n++
		retries = e.Retries
		return nil
	}))
	require.Equal(t, 1, n)
	assert.Equal(t, uint32(1), retries)

	// broker recovers; the SENT entry is re-driven
	producer.fail = false
	b.drainOnce()

	assert.Equal(t, []string{"a"}, producer.sent)
	n = 0
	require.NoError(t, ob.ScanByState(outbox.StateSent, func(uint64, outbox.Entry) error {
		n++
		return nil
	}))
	assert.Zero(t, n)
}
