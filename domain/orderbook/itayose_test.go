package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fv12 = int64(100000000000000)

// Concrete scenario 2: the classic opening-auction reference case.
func TestItayoseClearsAtMaxVolumePrice(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	_, err := b.PlaceOrder(1500, SideBorrow, 8500, 3*fv12, "bob", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(1500, SideBorrow, 8000, fv12, "carol", 2)
	require.NoError(t, err)
	_, err = b.PlaceOrder(1500, SideLend, 8300, 2*fv12, "alice", 3)
	require.NoError(t, err)

	res, err := b.RunItayose(1500)
	require.NoError(t, err)
	assert.True(t, res.Opened)
	assert.EqualValues(t, 8300, res.ClearingPrice)
	assert.EqualValues(t, fv12, res.MatchedAmount)
	assert.EqualValues(t, 8300, b.LastFilledPrice())
	assert.Equal(t, StateOpen, b.StateAt(1500))

	// every fill executes at the uniform clearing price
	require.Len(t, res.Fills, 2)
	for _, f := range res.Fills {
		assert.EqualValues(t, 8300, f.UnitPrice)
		assert.EqualValues(t, fv12, f.Amount)
	}

	// the unmatched lend remainder and the 8500 borrow order stay resting
	d := b.Detail(1500)
	assert.EqualValues(t, fv12, d.TotalLendAmount)
	assert.EqualValues(t, 3*fv12, d.TotalBorrowAmount)
	assert.EqualValues(t, 8300, d.BestLendPrice)
	assert.EqualValues(t, 8500, d.BestBorrowPrice)
}

func TestItayoseTieBreakByReferencePrice(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{ReferencePrice: 8100})

	_, err := b.PlaceOrder(1500, SideBorrow, 8000, fv12, "carol", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(1500, SideLend, 8300, 2*fv12, "alice", 2)
	require.NoError(t, err)

	// both 8000 and 8300 match the same volume; 8000 is closer to 8100
	res, err := b.RunItayose(1500)
	require.NoError(t, err)
	assert.EqualValues(t, 8000, res.ClearingPrice)
	assert.EqualValues(t, fv12, res.MatchedAmount)
}

func TestItayoseTieBreakBySurplusSide(t *testing.T) {
	// excess borrow supply pushes the clearing price to the lowest tie
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	_, err := b.PlaceOrder(1500, SideBorrow, 8000, 3*fv12, "carol", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(1500, SideLend, 8300, fv12, "alice", 2)
	require.NoError(t, err)

	res, err := b.RunItayose(1500)
	require.NoError(t, err)
	assert.EqualValues(t, 8000, res.ClearingPrice)
	assert.EqualValues(t, fv12, res.MatchedAmount)
}

func TestItayoseWithNoCrossOpensTheBook(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	_, err := b.PlaceOrder(1500, SideLend, 7000, fv12, "alice", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(1500, SideBorrow, 9000, fv12, "bob", 2)
	require.NoError(t, err)

	res, err := b.RunItayose(1500)
	require.NoError(t, err)
	assert.True(t, res.Opened)
	assert.Zero(t, res.MatchedAmount)
	assert.Empty(t, res.Fills)
	assert.Zero(t, b.LastFilledPrice())

	// pre-orders carried over as ordinary resting orders
	require.Equal(t, StateOpen, b.StateAt(1500))
	res2, err := b.PlaceOrder(1500, SideLend, 9000, fv12, "carol", 3)
	require.NoError(t, err)
	assert.EqualValues(t, fv12, res2.FilledAmount)
}

func TestItayoseStateGating(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	_, err := b.RunItayose(500)
	assert.ErrorIs(t, err, ErrMarketNotOpen)

	_, err = b.RunItayose(tMaturity)
	assert.ErrorIs(t, err, ErrMarketTerminated)

	_, err = b.RunItayose(1500)
	require.NoError(t, err)
	_, err = b.RunItayose(1500)
	assert.ErrorIs(t, err, ErrMarketNotOpen, "auction runs exactly once")
}

func TestPreOrdersDoNotMatchBeforeAuction(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	// these cross each other but must both rest until the auction
	r1, err := b.PlaceOrder(1500, SideBorrow, 8000, fv12, "bob", 1)
	require.NoError(t, err)
	assert.Empty(t, r1.Fills)
	r2, err := b.PlaceOrder(1500, SideLend, 8500, fv12, "alice", 2)
	require.NoError(t, err)
	assert.Empty(t, r2.Fills)

	d := b.Detail(1500)
	assert.EqualValues(t, fv12, d.TotalLendAmount)
	assert.EqualValues(t, fv12, d.TotalBorrowAmount)
}
