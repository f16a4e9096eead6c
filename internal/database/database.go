package database

import (
	"context"
	"fmt"
	"iter"

	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// Store is the append-only record log. Append is the only mutation and returns
// the record exactly as a later Scan will yield it. Scan reads
// the medium afresh on every call and yields records in storage order, which
// is chronological order.
type Store interface {
	Init(context.Context) error
	Append(context.Context, types.Record) (types.Record, error)
	Scan(context.Context) iter.Seq2[types.Record, error]
	Close() error
}

// ErrUnwritable wraps every failure to persist a record.
var ErrUnwritable = errors.New("record store is not writable")

// RowError reports a stored row that could not be decoded. Scan yields it and
// keeps going, so callers may count and skip damaged rows.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Open builds the configured backend. A SQLite store left on the default CSV
// file name is placed in its own default file instead.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendSQLite:
		path := cfg.Path
		if path == constants.DefaultLogPath {
			path = constants.DefaultSQLitePath
		}
		return NewSQLiteStore(ctx, path)
	case config.StoreBackendCSV, "":
		return NewCSVStore(cfg.Path, cfg.LegacyZeroPlaceholder), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Collect drains a scan into a slice, stopping at the first error.
func Collect(seq iter.Seq2[types.Record, error]) ([]types.Record, error) {
	var records []types.Record
	for record, err := range seq {
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}
