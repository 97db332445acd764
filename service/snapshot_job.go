package service

import (
	"context"
	"time"

	"github.com/Secured-Finance/contracts-sub003/snapshot"
)

// StartSnapshotJob periodically snapshots the market and truncates
// sealed log segments the snapshot covers. The capture runs under the
// read lock so it is consistent with its sequence.
func (s *MarketService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	w := &snapshot.Writer{Dir: dir}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			s.mu.RLock()
			seq := s.seqGen.Current()
			snap := snapshot.Capture(seq, s.mkt)
			s.mu.RUnlock()

			if err := w.WriteSnapshot(&snap); err != nil {
				s.log.Error("snapshot write failed", "seq", seq, "err", err)
				continue
			}

			if err := s.wal.TruncateBefore(seq); err != nil {
				s.log.Error("wal truncate failed", "seq", seq, "err", err)
			}

			s.log.Info("snapshot written", "seq", seq)
		}
	}()
}
