package market

import (
	"sync/atomic"
	"time"
)

// Clock supplies the monotonic logical time driving order book
// lifecycle transitions. The host decides what a tick means; the
// engine only compares values.
type Clock interface {
	Now() int64
}

// SystemClock reads wall time as Unix seconds.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock used for WAL replay and tests.
type ManualClock struct {
	t atomic.Int64
}

func (c *ManualClock) Now() int64    { return c.t.Load() }
func (c *ManualClock) Set(now int64) { c.t.Store(now) }
