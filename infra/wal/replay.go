package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Header: [type:1][seq:8][time:8][len:4]
const headerSize = 21

type ReplayHandler func(*Record) error

// Replay streams every record in the directory in sequence order and
// returns the highest sequence seen. A CRC mismatch or a sequence that
// does not advance aborts the replay. A short final frame in the last
// segment is a torn tail from a crash mid-append; it is truncated away
// and replay ends there. A crash can only shorten the file, so a frame
// that is complete but fails its CRC is real corruption and still
// aborts.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return lastSeq, err
		}
		last := i == len(files)-1
		var off int64

		for {
			rec, err := readRecord(f)
			if err != nil {
				if err == io.EOF {
					break
				}
				if last && errors.Is(err, io.ErrUnexpectedEOF) {
					_ = f.Close()
					return lastSeq, os.Truncate(path, off)
				}
				_ = f.Close()
				return lastSeq, err
			}
			off += int64(headerSize + len(rec.Data) + 4)

			if rec.Seq <= lastSeq {
				_ = f.Close()
				return lastSeq, fmt.Errorf("non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq

			if err := fn(rec); err != nil {
				_ = f.Close()
				return lastSeq, err
			}
		}
		_ = f.Close()
	}

	return lastSeq, nil
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, fmt.Errorf("crc mismatch at seq %d", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}

// maxSeqInSegment scans a sealed segment and reports the highest
// sequence it holds. Used only for snapshot truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64

	for {
		header := make([]byte, headerSize)
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])

		if _, err := f.Seek(int64(payloadLen+4), io.SeekCurrent); err != nil {
			return max, err
		}
	}
}
