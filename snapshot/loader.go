package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/Secured-Finance/contracts-sub003/domain/market"
	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
)

// Load restores a market from Dir and returns the sequence the
// snapshot was taken at. A missing file is not an error; replay then
// starts from sequence zero.
func Load(dir string, mkt *market.Market) (uint64, error) {
	f, err := os.Open(filepath.Join(dir, "snapshot.bin"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return 0, err
	}

	if err := Apply(&s, mkt); err != nil {
		return 0, err
	}
	return s.Seq, nil
}

// Apply rebuilds the market from a decoded snapshot.
func Apply(s *Snapshot, mkt *market.Market) error {
	for _, entry := range s.Books {
		book, err := mkt.RestoreOrderBook(entry.ID, entry.PreOpening, entry.Maturity, entry.ReferencePrice)
		if err != nil {
			return err
		}

		for _, oe := range entry.Orders {
			err := book.LoadOrder(orderbook.Order{
				ID:         oe.ID,
				Side:       orderbook.Side(oe.Side),
				UnitPrice:  oe.UnitPrice,
				Amount:     oe.Amount,
				Maker:      oe.Maker,
				IsPreOrder: oe.IsPreOrder,
				Seq:        oe.Seq,
			})
			if err != nil {
				return err
			}
		}

		book.RestoreState(entry.LastFilledPrice, entry.Opened)
	}

	mkt.SetNextOrderID(s.NextOrderID)
	return nil
}
