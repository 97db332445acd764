package snapshot

import "time"

// Snapshot captures a full market at a log sequence. Replay resumes
// from Seq; everything before it is covered by the captured state.
type Snapshot struct {
	Seq         uint64
	Created     time.Time
	Currency    string
	NextOrderID uint64
	Books       []BookEntry
}

type BookEntry struct {
	ID              uint64
	PreOpening      int64
	Maturity        int64
	ReferencePrice  int64
	LastFilledPrice int64
	Opened          bool
	Orders          []OrderEntry
}

type OrderEntry struct {
	ID         uint64
	Side       uint8
	UnitPrice  int64
	Amount     int64
	Maker      string
	IsPreOrder bool
	Seq        uint64
}
