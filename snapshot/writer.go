package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/Secured-Finance/contracts-sub003/domain/market"
	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
)

type Writer struct {
	Dir string
}

// Write captures the market at seq and persists it.
func (w *Writer) Write(seq uint64, mkt *market.Market) error {
	s := Capture(seq, mkt)
	return w.WriteSnapshot(&s)
}

// WriteSnapshot persists an already captured snapshot. The file is
// staged and renamed so a crash mid-write leaves the previous snapshot
// intact.
func (w *Writer) WriteSnapshot(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(w.Dir, "snapshot.bin.tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, filepath.Join(w.Dir, "snapshot.bin"))
}

// Capture builds the in-memory snapshot without touching disk.
func Capture(seq uint64, mkt *market.Market) Snapshot {
	s := Snapshot{
		Seq:         seq,
		Created:     time.Now(),
		Currency:    mkt.Currency(),
		NextOrderID: mkt.NextOrderID(),
	}

	for _, id := range mkt.OrderBookIDs() {
		book, err := mkt.Book(id)
		if err != nil {
			continue
		}

		entry := BookEntry{
			ID:              book.ID(),
			PreOpening:      book.PreOpening(),
			Maturity:        book.Maturity(),
			ReferencePrice:  book.ReferencePrice(),
			LastFilledPrice: book.LastFilledPrice(),
			Opened:          book.Opened(),
		}

		book.WalkOrders(func(o orderbook.Order) bool {
			entry.Orders = append(entry.Orders, OrderEntry{
				ID:         o.ID,
				Side:       uint8(o.Side),
				UnitPrice:  o.UnitPrice,
				Amount:     o.Amount,
				Maker:      o.Maker,
				IsPreOrder: o.IsPreOrder,
				Seq:        o.Seq,
			})
			return true
		})

		s.Books = append(s.Books, entry)
	}

	return s
}
