package wal

type RecordType uint8

const (
	RecordCreateBook RecordType = iota + 1
	RecordPlace
	RecordCancel
	RecordUnwind
	RecordItayose
)

// Record is one durable engine mutation. Time is the engine clock
// reading at append time and is re-used as "now" during replay, so a
// rebuilt market walks through the same lifecycle transitions.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, now int64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: now,
		Data: data,
	}
}
