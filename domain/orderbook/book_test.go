package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tPreOpen  = int64(1000)
	tMaturity = int64(1000000)
	tOpen     = int64(2000)
)

// newOpenBook returns a book already through an empty opening auction.
func newOpenBook(t *testing.T, cfg Config) *Book {
	t.Helper()
	b := NewBook(1, tPreOpen, tMaturity, cfg)
	_, err := b.RunItayose(tPreOpen)
	require.NoError(t, err)
	require.Equal(t, StateOpen, b.StateAt(tOpen))
	return b
}

func TestLifecycleGating(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})

	_, err := b.PlaceOrder(500, SideLend, 8000, 100, "alice", 1)
	assert.ErrorIs(t, err, ErrMarketNotOpen)
	require.Equal(t, StatePreOpen, b.StateAt(500))

	// itayose window accepts pre-orders only
	res, err := b.PlaceOrder(1500, SideLend, 8000, 100, "alice", 1)
	require.NoError(t, err)
	assert.True(t, res.IsPreOrder)
	assert.True(t, res.Resting)

	_, err = b.PlaceOrder(1500, SideLend, 0, 100, "alice", 2)
	assert.ErrorIs(t, err, ErrInvalidPrice, "market orders cannot rest during itayose")

	_, err = b.UnwindPosition(1500, "alice", 100)
	assert.ErrorIs(t, err, ErrMarketNotOpen)

	_, err = b.PlaceOrder(tMaturity, SideLend, 8000, 100, "alice", 3)
	assert.ErrorIs(t, err, ErrMarketTerminated)
	_, err = b.CancelOrder(tMaturity, 1, "alice")
	assert.ErrorIs(t, err, ErrMarketTerminated)
}

func TestPlaceOrderValidation(t *testing.T) {
	b := newOpenBook(t, Config{})
	_, err := b.PlaceOrder(tOpen, SideLend, 8000, 0, "alice", 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.PlaceOrder(tOpen, SideLend, 10001, 100, "alice", 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = b.PlaceOrder(tOpen, SideLend, -1, 100, "alice", 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestOversizedAmountsRejected(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideLend, 8000, MaxAmount+1, "alice", 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.UnwindPosition(tOpen, "alice", MaxAmount+1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.UnwindPosition(tOpen, "alice", -(MaxAmount + 1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// at the bound the conversion stays exact: future value never
	// falls below present value at prices up to par
	res, err := b.PlaceOrder(tOpen, SideBorrow, 8000, MaxAmount, "bob", 1)
	require.NoError(t, err)
	assert.True(t, res.Resting)
	lend, err := b.PlaceOrder(tOpen, SideLend, 8000, MaxAmount, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, MaxAmount, lend.FilledAmount)
	assert.GreaterOrEqual(t, lend.FilledFutureValue, lend.FilledAmount)
}

func TestRestingOrderDoesNotMatch(t *testing.T) {
	b := newOpenBook(t, Config{})

	res, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)
	assert.True(t, res.Resting)
	assert.Empty(t, res.Fills)

	// non-crossing lend order (limit below the borrow ask) rests too
	res, err = b.PlaceOrder(tOpen, SideLend, 7900, 100, "alice", 2)
	require.NoError(t, err)
	assert.True(t, res.Resting)
	assert.Empty(t, res.Fills)

	bb, ok := b.BestBorrowPrice()
	require.True(t, ok)
	assert.EqualValues(t, 8000, bb)
	bl, ok := b.BestLendPrice()
	require.True(t, ok)
	assert.EqualValues(t, 7900, bl)
}

func TestCrossingLimitOrderMatches(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)

	res, err := b.PlaceOrder(tOpen, SideLend, 8100, 60, "alice", 2)
	require.NoError(t, err)
	assert.False(t, res.Resting)
	assert.EqualValues(t, 60, res.FilledAmount)
	require.Len(t, res.Fills, 1)

	f := res.Fills[0]
	assert.EqualValues(t, 1, f.MakerOrderID)
	assert.Equal(t, "bob", f.Maker)
	assert.Equal(t, "alice", f.Taker)
	assert.Equal(t, SideBorrow, f.Side)
	assert.EqualValues(t, 8000, f.UnitPrice)
	assert.EqualValues(t, 60, f.Amount)
	assert.EqualValues(t, 75, f.FutureValue) // 60 * 10000 / 8000
	assert.False(t, f.MakerFullyConsumed)

	assert.EqualValues(t, 8000, b.LastFilledPrice())

	o, err := b.GetOrder(1)
	require.NoError(t, err)
	assert.EqualValues(t, 40, o.Amount)
}

func TestCrossingRemainderRests(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)

	res, err := b.PlaceOrder(tOpen, SideLend, 8100, 250, "alice", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.FilledAmount)
	assert.EqualValues(t, 150, res.RemainingAmount)
	assert.True(t, res.Resting)

	bl, ok := b.BestLendPrice()
	require.True(t, ok)
	assert.EqualValues(t, 8100, bl)
	_, ok = b.BestBorrowPrice()
	assert.False(t, ok)
}

func TestMarketOrder(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideLend, 0, 100, "alice", 1)
	assert.ErrorIs(t, err, ErrEmptyOrderBook)

	_, err = b.PlaceOrder(tOpen, SideBorrow, 8000, 60, "bob", 2)
	require.NoError(t, err)

	// partial market fill is a normal result; the remainder is dropped
	res, err := b.PlaceOrder(tOpen, SideLend, 0, 100, "alice", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 60, res.FilledAmount)
	assert.EqualValues(t, 40, res.RemainingAmount)
	assert.False(t, res.Resting)
	_, ok := b.BestLendPrice()
	assert.False(t, ok, "market remainder must not rest")
}

func TestSelfMatchAllowed(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "alice", 1)
	require.NoError(t, err)

	res, err := b.PlaceOrder(tOpen, SideLend, 8000, 100, "alice", 2)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, "alice", res.Fills[0].Maker)
	assert.Equal(t, "alice", res.Fills[0].Taker)
	assert.EqualValues(t, 100, res.FilledAmount)
}

func TestCircuitBreakerBoundsLimitTaker(t *testing.T) {
	b := newOpenBook(t, Config{CircuitBreakerRange: 100, ReferencePrice: 8000})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(tOpen, SideBorrow, 8500, 100, "carol", 2)
	require.NoError(t, err)

	// limit 9000 would lift both levels, the band stops at 8100
	res, err := b.PlaceOrder(tOpen, SideLend, 9000, 200, "alice", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.FilledAmount)
	assert.EqualValues(t, 100, res.RemainingAmount)
	assert.True(t, res.Resting)

	bl, ok := b.BestLendPrice()
	require.True(t, ok)
	assert.EqualValues(t, 9000, bl)
	bb, ok := b.BestBorrowPrice()
	require.True(t, ok)
	assert.EqualValues(t, 8500, bb)
}

func TestCircuitBreakerBoundsMarketTaker(t *testing.T) {
	b := newOpenBook(t, Config{CircuitBreakerRange: 100, ReferencePrice: 8000})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8500, 100, "bob", 1)
	require.NoError(t, err)

	// the only liquidity sits beyond the band: nothing is fillable
	_, err = b.PlaceOrder(tOpen, SideLend, 0, 100, "alice", 2)
	assert.ErrorIs(t, err, ErrEmptyOrderBook)

	// borrow-side band is symmetric around the reference
	_, err = b.PlaceOrder(tOpen, SideLend, 7800, 100, "carol", 3)
	require.NoError(t, err)
	_, err = b.PlaceOrder(tOpen, SideBorrow, 0, 100, "dave", 4)
	assert.ErrorIs(t, err, ErrEmptyOrderBook)
}

func TestCancelOrder(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideLend, 8000, 100, "alice", 1)
	require.NoError(t, err)

	_, err = b.CancelOrder(tOpen, 99, "alice")
	assert.ErrorIs(t, err, ErrNoOrderExists)

	_, err = b.CancelOrder(tOpen, 1, "mallory")
	assert.ErrorIs(t, err, ErrCallerNotMaker)

	o, err := b.CancelOrder(tOpen, 1, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 100, o.Amount)

	_, err = b.GetOrder(1)
	assert.ErrorIs(t, err, ErrNoOrderExists)
}

func TestCancelPreOrderDuringItayoseWindow(t *testing.T) {
	b := NewBook(1, tPreOpen, tMaturity, Config{})
	_, err := b.PlaceOrder(1500, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)

	o, err := b.CancelOrder(1500, 1, "bob")
	require.NoError(t, err)
	assert.True(t, o.IsPreOrder)
}

func TestUnwindPosition(t *testing.T) {
	b := newOpenBook(t, Config{})

	// 100 PV resting at 8000 is 125 FV of lend liquidity
	_, err := b.PlaceOrder(tOpen, SideLend, 8000, 100, "alice", 1)
	require.NoError(t, err)

	// a lend position of +125 FV is offset by a borrow-side taker
	res, err := b.UnwindPosition(tOpen, "carol", 125)
	require.NoError(t, err)
	assert.Equal(t, SideBorrow, res.Side)
	assert.EqualValues(t, 100, res.FilledAmount)
	assert.EqualValues(t, 125, res.FilledFutureValue)
	assert.Zero(t, res.RemainingFutureValue)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, SideLend, res.Fills[0].Side)
	assert.Equal(t, "carol", res.Fills[0].Taker)
}

func TestUnwindPartialIsNotAnError(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideLend, 8000, 40, "alice", 1) // 50 FV
	require.NoError(t, err)

	res, err := b.UnwindPosition(tOpen, "carol", 125)
	require.NoError(t, err)
	assert.EqualValues(t, 50, res.FilledFutureValue)
	assert.EqualValues(t, 75, res.RemainingFutureValue)

	// empty book unwind is a zero fill, still not an error
	res, err = b.UnwindPosition(tOpen, "carol", 10)
	require.NoError(t, err)
	assert.Zero(t, res.FilledAmount)
	assert.EqualValues(t, 10, res.RemainingFutureValue)
}

func TestUnwindBorrowPosition(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)

	// a borrow position of -125 FV is offset by a lend-side taker
	res, err := b.UnwindPosition(tOpen, "carol", -125)
	require.NoError(t, err)
	assert.Equal(t, SideLend, res.Side)
	assert.EqualValues(t, 100, res.FilledAmount)
	assert.Zero(t, res.RemainingFutureValue)
}

func TestUnwindRejectsZero(t *testing.T) {
	b := newOpenBook(t, Config{})
	_, err := b.UnwindPosition(tOpen, "carol", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDetail(t *testing.T) {
	b := newOpenBook(t, Config{})

	_, err := b.PlaceOrder(tOpen, SideLend, 7900, 100, "alice", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(tOpen, SideBorrow, 8100, 200, "bob", 2)
	require.NoError(t, err)

	d := b.Detail(tOpen)
	assert.Equal(t, StateOpen, d.State)
	assert.EqualValues(t, 7900, d.BestLendPrice)
	assert.EqualValues(t, 8100, d.BestBorrowPrice)
	assert.EqualValues(t, 8000, d.MidPrice)
	assert.EqualValues(t, 100, d.TotalLendAmount)
	assert.EqualValues(t, 200, d.TotalBorrowAmount)
	assert.Zero(t, d.LastFilledPrice)
}

func TestEstimatesDoNotMutate(t *testing.T) {
	b := newOpenBook(t, Config{})
	_, err := b.PlaceOrder(tOpen, SideBorrow, 8000, 100, "bob", 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(tOpen, SideLend, 7500, 80, "alice", 2)
	require.NoError(t, err)

	assert.EqualValues(t, 60, b.EstimateDropFromFirst(60, 0))
	assert.EqualValues(t, 100, b.EstimateDropFromFirst(500, 0))
	assert.EqualValues(t, 80, b.EstimateDropFromLast(500, 0))

	d := b.Detail(tOpen)
	assert.EqualValues(t, 80, d.TotalLendAmount)
	assert.EqualValues(t, 100, d.TotalBorrowAmount)
}
