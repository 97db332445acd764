package orderbook

import "sort"

// ItayoseResult is the outcome of the opening auction.
type ItayoseResult struct {
	ClearingPrice int64
	MatchedAmount int64
	Fills         []Fill
	Opened        bool
}

// RunItayose executes the uniform-price opening auction over the
// accumulated pre-orders and transitions the book to Open.
//
// The clearing price maximizes total matched volume. When several
// prices tie, the one closest to the configured reference price wins;
// without a reference price the tie breaks toward the side with excess
// volume (excess lend demand picks the highest tied price, excess
// borrow supply the lowest). All fills execute at the single clearing
// price regardless of each order's original limit. Orders not fully
// matched stay resting and become ordinary orders once the book is
// open.
func (b *Book) RunItayose(now int64) (ItayoseResult, error) {
	switch b.StateAt(now) {
	case StateMatured:
		return ItayoseResult{}, ErrMarketTerminated
	case StatePreOpen, StateOpen:
		return ItayoseResult{}, ErrMarketNotOpen
	}

	price, matched := b.clearingPrice()
	b.opened = true
	if matched == 0 {
		// nothing crossed; the book still opens for continuous trading
		return ItayoseResult{Opened: true}, nil
	}

	lendRes := b.lend.DropFromLast(matched, price)
	borrowRes := b.borrow.DropFromFirst(matched, price)
	b.lastFilledPrice = price
	if b.refPrice == 0 {
		b.refPrice = price
	}

	fills := make([]Fill, 0, len(lendRes.Taken)+len(borrowRes.Taken))
	fills = appendUniformFills(fills, lendRes, SideLend, price)
	fills = appendUniformFills(fills, borrowRes, SideBorrow, price)

	return ItayoseResult{
		ClearingPrice: price,
		MatchedAmount: matched,
		Fills:         fills,
		Opened:        true,
	}, nil
}

// clearingPrice scans the union of resting prices and returns the price
// maximizing matched volume, with the documented deterministic
// tie-break, along with that volume.
func (b *Book) clearingPrice() (int64, int64) {
	var candidates []int64
	b.lend.WalkPrices(func(p, _ int64) bool {
		candidates = append(candidates, p)
		return true
	})
	b.borrow.WalkPrices(func(p, _ int64) bool {
		candidates = append(candidates, p)
		return true
	})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	candidates = dedupe(candidates)

	var best int64
	var ties []int64
	for _, p := range candidates {
		demand := b.lend.AmountFrom(p)
		supply := b.borrow.AmountUpTo(p)
		m := demand
		if supply < m {
			m = supply
		}
		if m == 0 {
			continue
		}
		switch {
		case m > best:
			best = m
			ties = append(ties[:0], p)
		case m == best:
			ties = append(ties, p)
		}
	}
	if best == 0 {
		return 0, 0
	}
	if len(ties) == 1 {
		return ties[0], best
	}

	if b.refPrice > 0 {
		pick := ties[0]
		for _, p := range ties[1:] {
			if absDiff(p, b.refPrice) < absDiff(pick, b.refPrice) {
				pick = p
			}
		}
		return pick, best
	}

	hi := ties[len(ties)-1]
	demand := b.lend.AmountFrom(hi)
	supply := b.borrow.AmountUpTo(hi)
	switch {
	case demand > supply:
		return hi, best
	case demand < supply:
		return ties[0], best
	default:
		return ties[len(ties)/2], best
	}
}

func appendUniformFills(fills []Fill, res DropResult, side Side, clearing int64) []Fill {
	for _, tk := range res.Taken {
		fills = append(fills, Fill{
			MakerOrderID:       tk.OrderID,
			Maker:              tk.Maker,
			Side:               side,
			UnitPrice:          clearing,
			Amount:             tk.Amount,
			FutureValue:        FutureValueOf(tk.Amount, clearing),
			MakerFullyConsumed: tk.FullyConsumed,
		})
	}
	return fills
}

func dedupe(sorted []int64) []int64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
