package outbox

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestPutGetDelete(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.PutNew(1, []byte(`{"fill":"a"}`)))

	e, err := o.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateNew, e.State)
	assert.Equal(t, uint32(0), e.Retries)
	assert.Equal(t, []byte(`{"fill":"a"}`), e.Payload)

	require.NoError(t, o.Delete(1))
	_, err = o.Get(1)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestStateTransitions(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.PutNew(7, []byte("payload")))
	require.NoError(t, o.UpdateState(7, StateSent, 1))

	e, err := o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateSent, e.State)
	assert.Equal(t, uint32(1), e.Retries)
	assert.NotZero(t, e.LastAttempt)
	assert.Equal(t, []byte("payload"), e.Payload)

	require.NoError(t, o.UpdateState(7, StateAcked, 1))
	e, err = o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, e.State)
}

func TestScanByStateFiltersAndOrders(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.PutNew(3, []byte("c")))
	require.NoError(t, o.PutNew(1, []byte("a")))
	require.NoError(t, o.PutNew(2, []byte("b")))
	require.NoError(t, o.UpdateState(2, StateSent, 1))

	var seqs []uint64
	require.NoError(t, o.ScanByState(StateNew, func(seq uint64, e Entry) error {
		seqs = append(seqs, seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3}, seqs)

	seqs = nil
	require.NoError(t, o.ScanByState(StateSent, func(seq uint64, e Entry) error {
		seqs = append(seqs, seq)
		return nil
	}))
	assert.Equal(t, []uint64{2}, seqs)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	o, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, o.PutNew(42, []byte("durable")))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	e, err := o.Get(42)
	require.NoError(t, err)
	assert.Equal(t, StateNew, e.State)
	assert.Equal(t, []byte("durable"), e.Payload)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "SENT", StateSent.String())
	assert.Equal(t, "ACKED", StateAcked.String())
	assert.Equal(t, "FAILED", StateFailed.String())
}
