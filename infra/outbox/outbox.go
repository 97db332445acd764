// Package outbox persists fill events until a broker acknowledges
// them. Entries move NEW -> SENT -> ACKED and are deleted once acked,
// so a crash between matching and publishing never loses a fill.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one pending fill event. Payload is the encoded event body
// handed to the broker verbatim.
type Entry struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 13+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[13:], e.Payload)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 13 {
		return Entry{}, errors.New("outbox: entry too short")
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return Entry{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability matters more than write speed here
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew inserts a pending fill event keyed by its event sequence.
func (o *Outbox) PutNew(eventSeq uint64, payload []byte) error {
	e := Entry{
		State:   StateNew,
		Payload: payload,
	}
	return o.db.Set(keyFor(eventSeq), encodeEntry(e), pebble.Sync)
}

// UpdateState records a send, ack or failure for an existing entry.
func (o *Outbox) UpdateState(eventSeq uint64, state State, retries uint32) error {
	e, err := o.Get(eventSeq)
	if err != nil {
		return err
	}
	e.State = state
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(eventSeq), encodeEntry(e), pebble.Sync)
}

// Delete removes an acked entry.
func (o *Outbox) Delete(eventSeq uint64) error {
	return o.db.Delete(keyFor(eventSeq), pebble.Sync)
}

func (o *Outbox) Get(eventSeq uint64) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(eventSeq))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()

	return decodeEntry(val)
}

// ScanByState iterates entries in the given state in key order. The
// broadcaster drains NEW entries with this, and re-drives SENT entries
// left over from a crash.
func (o *Outbox) ScanByState(state State, fn func(eventSeq uint64, e Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("fill/"),
		UpperBound: []byte("fill/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return err
		}
		if e.State != state {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}

		if err := fn(seq, e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(eventSeq uint64) []byte {
	return []byte(fmt.Sprintf("fill/%020d", eventSeq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("fill/"))), "%d", &seq)
	return seq, err
}
