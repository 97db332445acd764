package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

// WAL is an append-only segmented log. Appends go to the current
// segment, which rotates on size or age. Records are CRC framed so a
// torn tail is detected on replay rather than silently re-applied.
// Safe for concurrent use; truncation and rotation share one lock so
// the current segment can never be removed out from under a writer.
type WAL struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segMaxAge  time.Duration
	current    *segment
	segIndex   int
	lastRotate time.Time
}

func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	index, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segMaxAge:  cfg.SegmentDuration,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payloadLen := uint32(len(r.Data))

	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := make([]byte, headerSize+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.segSize {
		return true
	}
	return w.segMaxAge > 0 && time.Since(w.lastRotate) >= w.segMaxAge
}

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes sealed segments whose records are all covered
// by a snapshot at seq. The current segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(w.dir, "segment-*.wal"))
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.file.Name() {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func lastSegmentIndex(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return 0, err
	}

	max := 0
	for _, path := range files {
		base := filepath.Base(path)
		numeric := strings.TrimSuffix(strings.TrimPrefix(base, "segment-"), ".wal")
		n, err := strconv.Atoi(numeric)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
