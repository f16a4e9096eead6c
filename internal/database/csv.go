package database

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"io/fs"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/types"
)

const (
	logFileMode    = 0o644
	tailWindow     = 4096
	lockRetryDelay = 20 * time.Millisecond
)

var _ Store = &csvStore{}

// csvStore keeps records as CSV rows under a header row. Each append is a
// single write of a complete row followed by fsync, serialized across
// processes by an advisory lock on a sidecar file.
type csvStore struct {
	path   string
	legacy bool
	mu     sync.Mutex
	lock   *flock.Flock
}

func NewCSVStore(path string, legacyZeroPlaceholder bool) Store {
	return &csvStore{
		path:   path,
		legacy: legacyZeroPlaceholder,
		lock:   flock.New(path + ".lock"),
	}
}

func (s *csvStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrapf(err, "lock %q", s.lock.Path())
	}
	if !locked {
		return errors.Errorf("lock %q not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()

	return fn()
}

// Init creates the log with its header row. An existing log is left alone.
func (s *csvStore) Init(ctx context.Context) error {
	err := s.withLock(ctx, func() error {
		f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, logFileMode)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() > 0 {
			return nil
		}

		var buf bytes.Buffer
		if err := writeRow(&buf, constants.LogHeader); err != nil {
			return err
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			return err
		}
		return f.Sync()
	})
	if err != nil {
		return errors.Wrapf(ErrUnwritable, "init %q: %v", s.path, err)
	}
	return nil
}

// Append writes one record. A log that does not exist yet gets its header in
// the same write. If the previous writer died mid-row, the torn fragment is
// closed off with a newline so it becomes its own unreadable row instead of
// corrupting this one. On a failed write the file is cut back to its prior
// length. The record comes back as stored, timestamp included.
func (s *csvStore) Append(ctx context.Context, record types.Record) (types.Record, error) {
	record.Timestamp = storedTimestamp(record.Timestamp)
	err := s.withLock(ctx, func() error {
		f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, logFileMode)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		size := info.Size()

		var buf bytes.Buffer
		if size == 0 {
			if err := writeRow(&buf, constants.LogHeader); err != nil {
				return err
			}
		} else {
			last, torn, err := s.readTail(f, size)
			if err != nil {
				return err
			}
			if torn {
				buf.WriteByte('\n')
			}
			if !last.IsZero() && record.Timestamp.Before(last) {
				record.Timestamp = last
			}
		}

		if err := writeRow(&buf, encodeRecord(record, s.legacy)); err != nil {
			return err
		}

		if _, err := f.Write(buf.Bytes()); err != nil {
			_ = f.Truncate(size)
			return err
		}
		return f.Sync()
	})
	if err != nil {
		return record, errors.Wrapf(ErrUnwritable, "append to %q: %v", s.path, err)
	}
	return record, nil
}

// readTail inspects the end of the log. It returns the timestamp of the last
// complete row, if it can be decoded, and whether the file ends mid-row.
func (s *csvStore) readTail(f *os.File, size int64) (time.Time, bool, error) {
	offset := max(size-tailWindow, 0)
	tail := make([]byte, size-offset)
	if _, err := f.ReadAt(tail, offset); err != nil && err != io.EOF {
		return time.Time{}, false, err
	}

	torn := tail[len(tail)-1] != '\n'
	if torn {
		i := bytes.LastIndexByte(tail, '\n')
		if i < 0 {
			return time.Time{}, true, nil
		}
		tail = tail[:i+1]
	}

	body := bytes.TrimRight(tail, "\r\n")
	start := bytes.LastIndexByte(body, '\n') + 1
	if start == 0 && offset > 0 {
		return time.Time{}, torn, nil
	}

	row, err := csv.NewReader(bytes.NewReader(body[start:])).Read()
	if err != nil {
		return time.Time{}, torn, nil
	}
	record, err := decodeRecord(row, s.legacy)
	if err != nil {
		return time.Time{}, torn, nil
	}
	return record.Timestamp, torn, nil
}

func writeRow(buf *bytes.Buffer, row []string) error {
	w := csv.NewWriter(buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Scan streams the log from the top. The header row is skipped, a missing log
// yields nothing, and rows that fail to decode are yielded as *RowError.
func (s *csvStore) Scan(ctx context.Context) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		f, err := os.Open(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(types.Record{}, errors.Wrapf(err, "open %q", s.path))
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.ReuseRecord = true

		header := true
		for {
			if err := ctx.Err(); err != nil {
				yield(types.Record{}, err)
				return
			}

			row, err := r.Read()
			if err == io.EOF {
				return
			}

			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				header = false
				if !yield(types.Record{}, &RowError{Line: parseErr.Line, Err: parseErr.Err}) {
					return
				}
				continue
			}
			if err != nil {
				yield(types.Record{}, errors.Wrapf(err, "read %q", s.path))
				return
			}

			if header {
				header = false
				continue
			}

			line, _ := r.FieldPos(0)
			record, err := decodeRecord(row, s.legacy)
			if err != nil {
				if !yield(types.Record{}, &RowError{Line: line, Err: err}) {
					return
				}
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (s *csvStore) Close() error {
	return nil
}
