package database

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// absentMarker is written for unknown numeric fields. Legacy logs wrote 0
// instead, which cannot be told apart from a measured zero.
const (
	absentMarker = ""
	legacyAbsent = "0"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOpt(o optional.Opt[float64], legacy bool) string {
	if v, ok := o.Get(); ok {
		return formatFloat(v)
	}
	if legacy {
		return legacyAbsent
	}
	return absentMarker
}

func encodeRecord(r types.Record, legacy bool) []string {
	return []string{
		FormatTimestamp(r.Timestamp),
		r.TargetHost,
		formatOpt(r.AvgLatencyMS, legacy),
		formatOpt(r.MinLatencyMS, legacy),
		formatOpt(r.MaxLatencyMS, legacy),
		formatFloat(r.PacketLossPct),
		formatOpt(r.DownloadSpeedMbps, legacy),
		formatOpt(r.DownloadTimeSec, legacy),
		string(r.Status),
	}
}

func parseMeasurement(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("%q is not a measurement", s)
	}
	return v, nil
}

// decodeOpt maps the absent marker, or anything that is not a number, to
// Empty. In legacy mode a literal 0 is also read as Empty.
func decodeOpt(s string, legacy bool) optional.Opt[float64] {
	v, err := parseMeasurement(s)
	if err != nil || (legacy && v == 0) {
		return optional.Empty[float64]()
	}
	return optional.New(v)
}

func decodeRecord(row []string, legacy bool) (types.Record, error) {
	if len(row) != len(constants.LogHeader) {
		return types.Record{}, errors.Errorf("expected %d fields, found %d", len(constants.LogHeader), len(row))
	}

	ts, err := ParseTimestamp(row[0])
	if err != nil {
		return types.Record{}, err
	}

	loss, err := parseMeasurement(row[5])
	if err != nil || loss > 100 {
		return types.Record{}, errors.Errorf("invalid packet loss %q", row[5])
	}

	status, ok := types.ParseStatus(strings.TrimSpace(row[8]))
	if !ok {
		return types.Record{}, errors.Errorf("invalid status %q", row[8])
	}

	return types.Record{
		Sample: types.Sample{
			Timestamp:         ts,
			TargetHost:        row[1],
			AvgLatencyMS:      decodeOpt(row[2], legacy),
			MinLatencyMS:      decodeOpt(row[3], legacy),
			MaxLatencyMS:      decodeOpt(row[4], legacy),
			PacketLossPct:     loss,
			DownloadSpeedMbps: decodeOpt(row[6], legacy),
			DownloadTimeSec:   decodeOpt(row[7], legacy),
		},
		Status: status,
	}, nil
}

// FormatTimestamp writes ts as local wall-clock time, the only zone the log
// holds. Text comparison of two formatted timestamps follows time order.
func FormatTimestamp(ts time.Time) string {
	return ts.Local().Format(constants.TimestampLayout)
}

// storedTimestamp is ts as it reads back from the log: local and whole seconds.
func storedTimestamp(ts time.Time) time.Time {
	return ts.Local().Truncate(time.Second)
}

// ParseTimestamp reads the record log's local wall-clock timestamp format.
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(constants.TimestampLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return ts, nil
}
