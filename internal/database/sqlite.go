package database

import (
	"context"
	"database/sql"
	"iter"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/SkylerRankin/netcheck/internal/types"
)

var _ Store = &sqliteStore{}

type sqliteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %q", path)
	}

	// One connection keeps appends strictly ordered within the process.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "configure sqlite database %q", path)
		}
	}

	return &sqliteStore{
		path: path,
		db:   db,
	}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	createText :=
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			ping_host TEXT NOT NULL,
			avg_latency_ms REAL,
			min_latency_ms REAL,
			max_latency_ms REAL,
			packet_loss_pct REAL NOT NULL,
			download_speed_mbps REAL,
			download_time_sec REAL,
			status TEXT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, createText); err != nil {
		return errors.Wrapf(ErrUnwritable, "create records table in %q: %v", s.path, err)
	}
	return nil
}

// Append inserts one record in its own transaction, clamping its timestamp to
// the newest stored one so the table stays chronologically ordered by id. The
// record comes back as stored.
func (s *sqliteStore) Append(ctx context.Context, record types.Record) (types.Record, error) {
	if err := s.Init(ctx); err != nil {
		return record, err
	}
	record.Timestamp = storedTimestamp(record.Timestamp)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var last sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT timestamp FROM records ORDER BY id DESC LIMIT 1`).Scan(&last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "failed to read last timestamp")
		}
		if last.Valid {
			if ts, err := ParseTimestamp(last.String); err == nil && record.Timestamp.Before(ts) {
				record.Timestamp = ts
			}
		}

		insertText :=
			`INSERT INTO records
			(timestamp, ping_host, avg_latency_ms, min_latency_ms, max_latency_ms, packet_loss_pct, download_speed_mbps, download_time_sec, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
		_, err = tx.ExecContext(ctx, insertText,
			FormatTimestamp(record.Timestamp),
			record.TargetHost,
			record.AvgLatencyMS,
			record.MinLatencyMS,
			record.MaxLatencyMS,
			record.PacketLossPct,
			record.DownloadSpeedMbps,
			record.DownloadTimeSec,
			string(record.Status),
		)
		return errors.Wrap(err, "failed to execute insert")
	})
	if err != nil {
		return record, errors.Wrapf(ErrUnwritable, "append to %q: %v", s.path, err)
	}
	return record, nil
}

func (s *sqliteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

func (s *sqliteStore) Scan(ctx context.Context) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'records'`).Scan(&exists)
		if err != nil {
			yield(types.Record{}, errors.Wrap(err, "failed to inspect schema"))
			return
		}
		if exists == 0 {
			return
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, timestamp, ping_host, avg_latency_ms, min_latency_ms, max_latency_ms,
				packet_loss_pct, download_speed_mbps, download_time_sec, status
			FROM records
			ORDER BY id ASC`)
		if err != nil {
			yield(types.Record{}, errors.Wrap(err, "failed to query records table"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id        int
				timestamp string
				status    string
				record    types.Record
			)
			err := rows.Scan(&id, &timestamp, &record.TargetHost, &record.AvgLatencyMS, &record.MinLatencyMS,
				&record.MaxLatencyMS, &record.PacketLossPct, &record.DownloadSpeedMbps, &record.DownloadTimeSec, &status)
			if err != nil {
				if !yield(types.Record{}, &RowError{Line: id, Err: err}) {
					return
				}
				continue
			}

			ts, tsErr := ParseTimestamp(timestamp)
			st, ok := types.ParseStatus(status)
			if tsErr != nil || !ok {
				if !yield(types.Record{}, &RowError{Line: id, Err: errors.Errorf("invalid row %q %q", timestamp, status)}) {
					return
				}
				continue
			}
			record.Timestamp = ts
			record.Status = st

			if !yield(record, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Record{}, errors.Wrap(err, "failed to iterate records"))
		}
	}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
