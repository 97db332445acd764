package orderbook

import "math"

const priceDenom int64 = 10000

// MaxAmount bounds order amounts and position future values so the
// present/future value conversions cannot overflow int64.
const MaxAmount = math.MaxInt64 / priceDenom

// MaxUnitPrice is the upper bound of the normalized discount-factor
// price. A unit price of 10000 means the present value equals the
// future value. Price 0 is reserved for market orders and is never a
// valid resting price.
const MaxUnitPrice int64 = 10000

type Side uint8

const (
	SideLend Side = iota
	SideBorrow
)

func (s Side) String() string {
	if s == SideLend {
		return "LEND"
	}
	return "BORROW"
}

// Opposite returns the side a taker order consumes from.
func (s Side) Opposite() Side {
	if s == SideLend {
		return SideBorrow
	}
	return SideLend
}

// Order is a resting order. Amount is the remaining present value and is
// the only field mutated after creation (reduced on partial fills).
type Order struct {
	ID         uint64
	Side       Side
	UnitPrice  int64
	Amount     int64
	Maker      string
	IsPreOrder bool
	Seq        uint64

	// queue links and owning node, slot indexes into the tree arena
	next int32
	prev int32
	node int32
}

// FutureValueOf converts a present-value amount to future value at the
// given unit price, rounding down.
func FutureValueOf(amount, unitPrice int64) int64 {
	if unitPrice <= 0 {
		return 0
	}
	return amount * priceDenom / unitPrice
}

// PresentValueOf converts a future-value amount to present value at the
// given unit price, rounding down.
func PresentValueOf(futureValue, unitPrice int64) int64 {
	return futureValue * unitPrice / priceDenom
}

// Fill is one maker-side execution produced by a taker walk or by the
// opening auction. FutureValue is derived from Amount at UnitPrice, which
// for auction fills is the uniform clearing price rather than the maker's
// original limit.
type Fill struct {
	MakerOrderID       uint64
	Maker              string
	Taker              string
	Side               Side // side of the consumed maker order
	UnitPrice          int64
	Amount             int64
	FutureValue        int64
	MakerFullyConsumed bool
}
